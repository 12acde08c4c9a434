package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/postclaw/internal/delivery"
	"github.com/user/postclaw/internal/gateway"
	"github.com/user/postclaw/internal/intake"
	"github.com/user/postclaw/internal/lock"
	"github.com/user/postclaw/internal/posting"
	"github.com/user/postclaw/internal/resolve"
	"github.com/user/postclaw/internal/scheduler"
	"github.com/user/postclaw/internal/state"
	"github.com/user/postclaw/internal/telegram"
	"github.com/user/postclaw/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the postclaw daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "postclaw.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.PostsDir, 0755); err != nil {
		return fmt.Errorf("create posts dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	timeout := time.Duration(cfg.SessionTimeoutMinutes) * time.Minute
	staleAfter := time.Duration(cfg.LockStaleMinutes) * time.Minute
	lockDir := filepath.Join(cfg.DataDir, "locks")

	// Session machinery
	store := state.NewStore(cfg.DataDir)
	coordinator := lock.NewCoordinator(lockDir, staleAfter)
	diag := resolve.NewDiagnostics(filepath.Join(cfg.DataDir, "diagnostics"), lockDir, store)
	resolver := resolve.New(store, diag, timeout)
	posts := posting.New(cfg.PostsDir)
	it := intake.New(store, coordinator, resolver, posts, posting.NewMarkdownGenerator())

	// Gateway
	gw := gateway.New(int64(cfg.MaxConcurrent))
	gw.Queue.SetProcessor(it.ProcessRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("postclaw started",
		"data_dir", cfg.DataDir,
		"posts_dir", cfg.PostsDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"session_timeout_minutes", cfg.SessionTimeoutMinutes,
		"pid_file", pidPath,
	)

	// Delivery registry
	deliveryReg := delivery.NewRegistry()

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, store)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")

		// Register telegram delivery for expiry notices
		deliveryReg.Register("telegram:", adapter.SendTo)
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Expiry sweeper
	sweeper := scheduler.New(store, coordinator, deliveryReg, timeout, cfg.SweepSchedule)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweeper.Stop()
	slog.Info("expiry sweeper started", "schedule", cfg.SweepSchedule)

	// Debug HTTP server
	if cfg.HTTP.Enabled {
		debugSrv := webhook.NewServer(store, posts)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: debugSrv,
		}
		go func() {
			slog.Info("debug server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("debug server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
