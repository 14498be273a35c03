// cmd/dits/reset_cmd.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(resetCmd())
}

func resetCmd() *cobra.Command {
	var mixed, hard bool

	cmd := &cobra.Command{
		Use:   "reset <commit>",
		Short: "Move the current branch to a commit (soft by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := hashutil.ParseHash(args[0])
			if err != nil {
				return newUsageError("reset: %q is not a valid commit hash: %v", args[0], err)
			}
			mode := repo.ResetSoft
			switch {
			case hard:
				mode = repo.ResetHard
			case mixed:
				mode = repo.ResetMixed
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			return r.Reset(target, mode)
		},
	}

	cmd.Flags().BoolVar(&mixed, "mixed", false, "Also reset the index to match the target commit")
	cmd.Flags().BoolVar(&hard, "hard", false, "Also reset the index and working tree to match the target commit")
	return cmd
}
