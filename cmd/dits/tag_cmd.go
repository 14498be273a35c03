// cmd/dits/tag_cmd.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(tagCmd())
}

func tagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag [name]",
		Short: "List tags, or create one at HEAD",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			if len(args) == 0 {
				names, err := r.Tags()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Println(n)
				}
				return nil
			}
			return r.CreateTag(args[0])
		},
	}
	return cmd
}
