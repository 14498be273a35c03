// cmd/dits/fsck_cmd.go
package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/pkg/integrity"
	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(fsckCmd())
}

func fsckCmd() *cobra.Command {
	var commitArg string
	var concurrency int

	cmd := &cobra.Command{
		Use:   "fsck",
		Short: "Verify every reachable object's digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := integrity.Scope{Kind: integrity.ScopeAll}
			if commitArg != "" {
				h, err := hashutil.ParseHash(commitArg)
				if err != nil {
					return newUsageError("fsck: %q is not a valid commit hash: %v", commitArg, err)
				}
				scope = integrity.Scope{Kind: integrity.ScopeCommit, Hash: h}
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := r.Fsck(context.Background(), scope, concurrency)
			if err != nil {
				return err
			}

			fmt.Printf("Scanned %d objects\n", report.Scanned)
			for _, m := range report.Mismatches {
				fmt.Printf("  corrupt: %v %s: %v\n", m.Kind, m.Hash, m.Err)
			}
			if len(report.Mismatches) > 0 {
				return fmt.Errorf("fsck: %d object(s) failed verification", len(report.Mismatches))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&commitArg, "commit", "", "Limit the check to the subgraph reachable from this commit")
	cmd.Flags().IntVarP(&concurrency, "jobs", "j", runtime.NumCPU(), "Concurrent verification workers per object kind")
	return cmd
}
