// cmd/dits/restore_cmd.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(restoreCmd())
}

func restoreCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "restore <path...>",
		Short: "Reconstruct paths from HEAD or a given commit into the working tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			var commitHash *hashutil.Hash
			if source != "" {
				h, err := hashutil.ParseHash(source)
				if err != nil {
					return newUsageError("restore: %q is not a valid commit hash: %v", source, err)
				}
				commitHash = &h
			}
			return r.Restore(args, commitHash)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Commit to restore from (default: HEAD)")
	return cmd
}
