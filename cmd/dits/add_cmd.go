// cmd/dits/add_cmd.go
package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/dits-vcs/dits/pkg/ingest"
	"github.com/dits-vcs/dits/pkg/repo"
)

func init() {
	rootCmd.AddCommand(addCmd())
}

func addCmd() *cobra.Command {
	var concurrency int
	var verbose bool
	var quiet bool

	cmd := &cobra.Command{
		Use:   "add [path...]",
		Short: "Stage files into the index, chunking and hashing new content",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			var bar *pb.ProgressBar
			if !quiet && !verbose {
				bar = pb.New(0)
				bar.SetTemplateString(`{{counters}} {{bar}} {{percent | green}} | {{speed}}`)
				bar.SetMaxWidth(80)
				bar.Start()
				defer bar.Finish()
			}

			progress := func(e ingest.Event) {
				switch {
				case e.Err != nil:
					fmt.Printf("  error: %s: %v\n", e.Path, e.Err)
				case verbose:
					fmt.Printf("  %s (%d bytes)\n", e.Path, e.Size)
				case bar != nil:
					bar.SetTotal(bar.Total() + 1)
					bar.Increment()
				}
			}

			return r.Add(context.Background(), args, repo.AddOptions{
				Concurrency: concurrency,
				Progress:    progress,
			})
		},
	}

	cmd.Flags().IntVarP(&concurrency, "jobs", "j", runtime.NumCPU(), "Number of files to ingest concurrently")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print each file as it is staged")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress bar")
	return cmd
}
