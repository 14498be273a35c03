// cmd/dits/commit_cmd.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(commitCmd())
}

func commitCmd() *cobra.Command {
	var message, author string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record the staged index as a new commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return newUsageError("commit: -m/--message is required")
			}
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := r.Commit(repo.CommitOptions{Author: author, Message: message})
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", h, message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message (required)")
	cmd.Flags().StringVar(&author, "author", "", "Override the [user] name/email identity for this commit")
	return cmd
}
