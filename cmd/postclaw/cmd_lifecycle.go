package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(stopCmd, restartCmd)
}

// runningDaemon locates the serve process through the PID file that
// `postclaw serve` drops in the data directory, confirming with signal 0
// that it is still alive.
func runningDaemon() (*os.Process, int, error) {
	cfg := loadConfig()
	pidPath := filepath.Join(cfg.DataDir, "postclaw.pid")

	data, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, fmt.Errorf("postclaw is not running (no PID file at %s)", pidPath)
		}
		return nil, 0, fmt.Errorf("read %s: %w", pidPath, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, 0, fmt.Errorf("%s does not contain a PID: %w", pidPath, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil, 0, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return nil, 0, fmt.Errorf("postclaw is not running (stale PID file, process %d gone)", pid)
	}
	return proc, pid, nil
}

// signalDaemon delivers sig to the running serve process and prints what it
// did. stop and restart differ only in the signal they send.
func signalDaemon(sig syscall.Signal, verb string) error {
	proc, pid, err := runningDaemon()
	if err != nil {
		return err
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	fmt.Fprintf(os.Stdout, "%s postclaw (PID %d, %s).\n", verb, pid, sig)
	return nil
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the postclaw daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalDaemon(syscall.SIGTERM, "Stopping")
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the postclaw daemon in place",
	Long:  "Sends SIGHUP to the running daemon, which re-executes itself with the current config.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return signalDaemon(syscall.SIGHUP, "Restarting")
	},
}
