package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/postclaw/internal/flow"
	"github.com/user/postclaw/internal/state"
	"github.com/user/postclaw/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewStore(cfg.DataDir)

		ctx := context.Background()
		list, err := store.List(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACTOR\tSTATE\tDATE\tPHOTOS\tLAST ACTIVITY")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				s.ActorID,
				s.State,
				s.Date,
				len(s.Artifacts),
				s.LastActivity.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <actor>",
	Short: "Show one session in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewStore(cfg.DataDir)

		ctx := context.Background()
		sess, _, err := store.Get(ctx, types.ActorID(args[0]))
		if err != nil {
			if errors.Is(err, types.ErrSessionNotFound) {
				return fmt.Errorf("session not found: %s", args[0])
			}
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Actor:\t%s\n", sess.ActorID)
		fmt.Fprintf(w, "State:\t%s\n", sess.State)
		fmt.Fprintf(w, "Created:\t%s\n", sess.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Last activity:\t%s\n", sess.LastActivity.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Date:\t%s\n", sess.Date)
		fmt.Fprintf(w, "Category:\t%s\n", sess.Category)
		fmt.Fprintf(w, "Label:\t%s\n", sess.ResolvedLabel)
		fmt.Fprintf(w, "Photos:\t%d\n", len(sess.Artifacts))
		fmt.Fprintf(w, "Post dir:\t%s\n", sess.PostDir)
		if missing := flow.MissingFields(sess); len(missing) > 0 {
			fmt.Fprintf(w, "Missing:\t%s\n", strings.Join(missing, ", "))
		}
		return w.Flush()
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <actor|all>",
	Short: "Clear a session or all sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store := state.NewStore(cfg.DataDir)
		ctx := context.Background()

		if args[0] == "all" {
			list, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			for _, s := range list {
				if err := store.Delete(ctx, s.ActorID); err != nil {
					return fmt.Errorf("delete session %s: %w", s.ActorID, err)
				}
			}
			fmt.Printf("Cleared %d sessions.\n", len(list))
			return nil
		}

		if err := store.Delete(ctx, types.ActorID(args[0])); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session %s cleared.\n", args[0])
		return nil
	},
}
