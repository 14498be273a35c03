// cmd/dits/gc_cmd.go
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(gcCmd())
}

func gcCmd() *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Sweep objects unreachable from any ref, recent reflog entry, or the staged index",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := r.GC(grace)
			if err != nil {
				return err
			}

			fmt.Printf("Reachable objects: %d\n", report.Reachable)
			for kind, n := range report.Swept {
				if n > 0 {
					fmt.Printf("  swept %d %v\n", n, kind)
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", repo.DefaultGCGrace, "Keep objects reachable from reflog entries younger than this")
	return cmd
}
