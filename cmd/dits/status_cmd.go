// cmd/dits/status_cmd.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(statusCmd())
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged changes and working-tree changes not yet staged",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			st, err := r.Status()
			if err != nil {
				return err
			}

			printSection := func(label string, paths []string) {
				if len(paths) == 0 {
					return
				}
				fmt.Printf("%s:\n", label)
				for _, p := range paths {
					fmt.Printf("  %s\n", p)
				}
			}

			printSection("Staged, added", st.Staged.Added)
			printSection("Staged, modified", st.Staged.Modified)
			printSection("Staged, deleted", st.Staged.Deleted)
			for newPath, oldPath := range st.Staged.Renamed {
				fmt.Printf("Staged, renamed: %s -> %s\n", oldPath, newPath)
			}
			printSection("Not staged, modified", st.Worktree.Modified)
			printSection("Not staged, deleted", st.Worktree.Deleted)
			printSection("Untracked", st.Worktree.Untracked)

			return nil
		},
	}
}
