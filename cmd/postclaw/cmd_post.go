package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/postclaw/internal/posting"
)

func init() {
	rootCmd.AddCommand(postCmd)
	postCmd.AddCommand(postListCmd)
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Inspect posting directories",
}

var postListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all posting directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		posts := posting.New(cfg.PostsDir)

		names, err := posts.List()
		if err != nil {
			return fmt.Errorf("list posts: %w", err)
		}
		if len(names) == 0 {
			fmt.Println("No posts found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPHOTOS\tGENERATED")
		for _, name := range names {
			dir := filepath.Join(cfg.PostsDir, name)

			photos := 0
			if entries, err := os.ReadDir(filepath.Join(dir, posting.ArtifactsDirName)); err == nil {
				photos = len(entries)
			}

			generated := "no"
			if _, err := os.Stat(filepath.Join(dir, posting.OutputFileName)); err == nil {
				generated = "yes"
			}

			fmt.Fprintf(w, "%s\t%d\t%s\n", name, photos, generated)
		}
		return w.Flush()
	},
}
