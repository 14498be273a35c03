// cmd/dits/diff_cmd.go
package main

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(diffCmd())
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old-commit> <new-commit>",
		Short: "Show per-path content diffs between two commits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldHash, err := hashutil.ParseHash(args[0])
			if err != nil {
				return newUsageError("diff: %q is not a valid commit hash: %v", args[0], err)
			}
			newHash, err := hashutil.ParseHash(args[1])
			if err != nil {
				return newUsageError("diff: %q is not a valid commit hash: %v", args[1], err)
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			diffs, err := r.DiffCommits(oldHash, newHash)
			if err != nil {
				return err
			}
			for _, pd := range diffs {
				fmt.Printf("--- %s\n", pd.Path)
				switch {
				case pd.Diff.Lines != nil:
					for _, l := range pd.Diff.Lines {
						switch l.Op {
						case diffmatchpatch.DiffInsert:
							fmt.Printf("+%s", l.Text)
						case diffmatchpatch.DiffDelete:
							fmt.Printf("-%s", l.Text)
						}
					}
					fmt.Println()
				case pd.Diff.ChunkDiff != nil:
					cd := pd.Diff.ChunkDiff
					fmt.Printf("  %d chunks added, %d removed, %d unchanged (%.1f%% changed)\n",
						len(cd.Added), len(cd.Removed), len(cd.Common), cd.PercentChanged*100)
				}
			}
			return nil
		},
	}
}
