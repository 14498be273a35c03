// cmd/dits/log_cmd.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(logCmd())
}

func logCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show first-parent commit history from HEAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			entries, err := r.Log(limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("commit %s\n", e.Hash)
				fmt.Printf("Author: %s\n", e.Commit.Author)
				fmt.Printf("Date:   %s\n", time.Unix(0, e.Commit.TimestampN).Format(time.RFC1123Z))
				fmt.Printf("\n    %s\n\n", e.Commit.Message)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of commits to show (0 = unlimited)")
	return cmd
}
