// cmd/dits/init_cmd.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(initCmd())
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a new, empty repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			r, err := repo.Init(root)
			if err != nil {
				return err
			}
			defer r.Close()
			fmt.Printf("Initialized empty dits repository in %s\n", r.GitDir)
			return nil
		},
	}
	return cmd
}
