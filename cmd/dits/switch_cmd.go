// cmd/dits/switch_cmd.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(switchCmd())
}

func switchCmd() *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "switch <branch-or-commit>",
		Short: "Switch HEAD to a branch, or detach it at a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			return r.Switch(args[0], detach)
		},
	}

	cmd.Flags().BoolVar(&detach, "detach", false, "Treat the argument as a commit hash and detach HEAD")
	return cmd
}
