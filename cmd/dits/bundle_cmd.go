// cmd/dits/bundle_cmd.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/internal/refs"
	"github.com/dits-vcs/dits/pkg/bundle"
	"github.com/dits-vcs/dits/pkg/repo"
)

// objectProgressBar returns an indeterminate mpb bar that grows its own
// total by one on every object, since the bundle's object count isn't
// known until the graph walk finishes.
func objectProgressBar(label string) (*mpb.Progress, *mpb.Bar, func(objectstore.Kind, hashutil.Hash)) {
	p := mpb.New(mpb.WithWidth(60))
	bar := p.AddBar(0,
		mpb.PrependDecorators(decor.Name(label, decor.WC{C: decor.DindentRight})),
		mpb.AppendDecorators(decor.CountersNoUnit("%d objects")),
	)
	onObject := func(objectstore.Kind, hashutil.Hash) {
		bar.SetTotal(bar.Current()+1, false)
		bar.Increment()
	}
	return p, bar, onObject
}

func init() {
	bundleCmd := &cobra.Command{
		Use:   "bundle",
		Short: "Export/import a ref's reachable object set as a single xz-compressed file",
	}
	bundleCmd.AddCommand(bundleExportCmd(), bundleImportCmd())
	rootCmd.AddCommand(bundleCmd)
}

func bundleExportCmd() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "export <output-file>",
		Short: "Write a branch's reachable objects to an xz-compressed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			refName := refs.Name(refs.HeadsPrefix + branch)
			head, err := r.Refs.Resolve(refName)
			if err != nil {
				return fmt.Errorf("bundle: resolve %s: %w", refName, err)
			}

			out, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer out.Close()

			p, bar, onObject := objectProgressBar("export")
			if err := bundle.Export(r.Store, string(refName), head, out, onObject); err != nil {
				return err
			}
			bar.SetTotal(bar.Current(), true)
			p.Wait()
			fmt.Printf("Exported %s (%s) to %s\n", refName, head, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", repo.DefaultBranch, "Branch to export")
	return cmd
}

func bundleImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <input-file>",
		Short: "Replay a bundle's objects into the local store and report its head ref/commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			defer r.Close()

			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			p, bar, onObject := objectProgressBar("import")
			result, err := bundle.Import(r.Store, in, onObject)
			if err != nil {
				return err
			}
			bar.SetTotal(bar.Current(), true)
			p.Wait()
			fmt.Printf("Imported %d objects (%d new) from %s\n", result.ObjectsTotal, result.ObjectsNew, args[0])
			fmt.Printf("Bundle head: %s -> %s\n", result.RefName, result.Head)
			fmt.Println("Point a local ref at it with: dits branch <name> then dits reset --hard <hash>")
			return nil
		},
	}
}
