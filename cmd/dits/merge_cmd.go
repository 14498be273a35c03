// cmd/dits/merge_cmd.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(mergeCmd())
}

func mergeCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "merge <branch>",
		Short: "Merge another branch into the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			result, err := r.Merge(args[0], repo.CommitOptions{Message: message})
			if err != nil {
				return err
			}
			if len(result.Conflicts) > 0 {
				fmt.Println("Automatic merge failed; fix conflicts and commit the result:")
				for _, p := range result.Conflicts {
					fmt.Printf("  both modified: %s\n", p)
				}
				return asConflictError(result.Conflicts)
			}
			if result.FastForward {
				fmt.Printf("Fast-forward to %s\n", result.CommitHash)
				return nil
			}
			fmt.Printf("Merge commit %s\n", result.CommitHash)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Merge commit message")
	return cmd
}
