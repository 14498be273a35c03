package repo

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dits-vcs/dits/internal/chunker"
	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/pkg/ingest"
)

// chunkerParams translates the repository's configured chunk bounds into
// chunker.Params.
func (r *Repository) chunkerParams() chunker.Params {
	c := r.Config.Core
	if c.ChunkMin == 0 || c.ChunkAvg == 0 || c.ChunkMax == 0 {
		return chunker.DefaultParams()
	}
	return chunker.Params{Min: c.ChunkMin, Avg: c.ChunkAvg, Max: c.ChunkMax}
}

// AddOptions controls an Add call; Progress, when set, is invoked once per
// ingested file, mirroring go-delta's Options.ProgressCallback shape.
type AddOptions struct {
	Concurrency int
	Progress    func(ingest.Event)
}

// Add ingests every path under the working tree matching paths (or the
// whole tree if paths is empty, honoring .ditsignore) and stages the
// resulting assets into the index.
func (r *Repository) Add(ctx context.Context, paths []string, opts AddOptions) error {
	all, err := ingest.Walk(r.Root)
	if err != nil {
		return err
	}
	selected := filterPaths(all, paths)
	if len(selected) == 0 {
		return nil
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 4
	}
	results, err := ingest.Tree(ctx, r.Store, r.Root, r.chunkerParams(), concurrency, selected, opts.Progress)
	if err != nil {
		return err
	}

	return r.withIndex(func(idx *index.Index) error {
		for _, rel := range selected {
			res, ok := results[rel]
			if !ok {
				continue // this path failed; its error already surfaced from ingest.Tree
			}
			info, err := os.Stat(filepath.Join(r.Root, rel))
			if err != nil {
				return err
			}
			idx.Stage(index.Entry{
				Path:      rel,
				AssetHash: res.AssetHash,
				Mode:      uint32(info.Mode().Perm()),
				Size:      res.Size,
				ModTime:   info.ModTime().UnixNano(),
				Inode:     index.StatInode(info),
			})
		}
		return nil
	})
}

// filterPaths narrows all (every tracked-eligible path under the repo) to
// those matching the caller-supplied selectors: exact relative paths or
// directory prefixes. An empty selector list means "everything".
func filterPaths(all []string, selectors []string) []string {
	if len(selectors) == 0 {
		return all
	}
	var out []string
	for _, rel := range all {
		for _, sel := range selectors {
			sel = filepath.ToSlash(filepath.Clean(sel))
			if rel == sel || (len(rel) > len(sel) && rel[:len(sel)] == sel && rel[len(sel)] == '/') {
				out = append(out, rel)
				break
			}
		}
	}
	return out
}
