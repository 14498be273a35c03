// cmd/dits/show_cmd.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(showCmd())
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <commit>",
		Short: "Show a single commit's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := hashutil.ParseHash(args[0])
			if err != nil {
				return newUsageError("show: %q is not a valid commit hash: %v", args[0], err)
			}
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			c, err := r.Show(h)
			if err != nil {
				return err
			}
			fmt.Printf("commit %s\n", h)
			for _, p := range c.Parents {
				fmt.Printf("parent %s\n", p)
			}
			fmt.Printf("tree    %s\n", c.TreeHash)
			fmt.Printf("Author: %s\n", c.Author)
			fmt.Printf("Date:   %s\n", time.Unix(0, c.TimestampN).Format(time.RFC1123Z))
			fmt.Printf("\n    %s\n", c.Message)
			return nil
		},
	}
}
