// Package diffmerge compares asset manifests and applies the three-way
// file-level merge policy dits uses for everything it does not attempt to
// content-merge. Line diffs are computed with sergi/go-diff/diffmatchpatch,
// the library go-git itself defers to for the same job.
package diffmerge

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
)

// textDiffSizeLimit is the combined-size ceiling under which two text
// assets get a line-unified diff instead of a chunk-set diff.
const textDiffSizeLimit = 1024 * 1024

// LineDiff is one line-unified edit, mirroring diffmatchpatch's own
// operation taxonomy (equal / insert / delete).
type LineDiff struct {
	Op   diffmatchpatch.Operation
	Text string
}

// ChunkSetDiff summarizes how two assets' chunk sets relate: which chunk
// hashes are only in the old asset, only in the new one, or common to both.
type ChunkSetDiff struct {
	Added          []manifest.ChunkRef
	Removed        []manifest.ChunkRef
	Common         []manifest.ChunkRef
	BytesChanged   uint64
	PercentChanged float64
}

// FileDiff is the result of comparing one (old, new) asset pair.
type FileDiff struct {
	Lines     []LineDiff // set when both assets are text and small enough
	ChunkDiff *ChunkSetDiff
}

// DiffAssets selects a diff strategy per the kind/size rule: both sides
// text and their combined size within textDiffSizeLimit gets a line diff;
// everything else gets a chunk-set diff.
func DiffAssets(store *objectstore.Store, oldAsset, newAsset *manifest.Asset) (FileDiff, error) {
	if oldAsset.ContentKind == manifest.KindText && newAsset.ContentKind == manifest.KindText &&
		oldAsset.Size+newAsset.Size <= textDiffSizeLimit {
		lines, err := lineDiff(store, oldAsset, newAsset)
		if err != nil {
			return FileDiff{}, err
		}
		return FileDiff{Lines: lines}, nil
	}

	return FileDiff{ChunkDiff: chunkSetDiff(oldAsset, newAsset)}, nil
}

func lineDiff(store *objectstore.Store, oldAsset, newAsset *manifest.Asset) ([]LineDiff, error) {
	oldText, err := reassembleText(store, oldAsset)
	if err != nil {
		return nil, fmt.Errorf("diffmerge: read old content: %w", err)
	}
	newText, err := reassembleText(store, newAsset)
	if err != nil {
		return nil, fmt.Errorf("diffmerge: read new content: %w", err)
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	diffs = dmp.DiffCleanupSemantic(diffs)

	out := make([]LineDiff, 0, len(diffs))
	for _, d := range diffs {
		out = append(out, LineDiff{Op: d.Type, Text: d.Text})
	}
	return out, nil
}

// reassembleText concatenates an asset's chunks in order, for a diff of a
// file small enough that holding it fully in memory is fine.
func reassembleText(store *objectstore.Store, asset *manifest.Asset) (string, error) {
	buf := make([]byte, 0, asset.Size)
	for _, c := range asset.Chunks {
		data, err := store.Get(objectstore.KindChunk, c.Hash)
		if err != nil {
			return "", err
		}
		buf = append(buf, data...)
	}
	return string(buf), nil
}

func chunkSetDiff(oldAsset, newAsset *manifest.Asset) *ChunkSetDiff {
	oldSet := make(map[hashutil.Hash]manifest.ChunkRef, len(oldAsset.Chunks))
	for _, c := range oldAsset.Chunks {
		oldSet[c.Hash] = c
	}
	newSet := make(map[hashutil.Hash]manifest.ChunkRef, len(newAsset.Chunks))
	for _, c := range newAsset.Chunks {
		newSet[c.Hash] = c
	}

	diff := &ChunkSetDiff{}
	var newUniqueBytes uint64
	for h, c := range newSet {
		if _, ok := oldSet[h]; ok {
			diff.Common = append(diff.Common, c)
		} else {
			diff.Added = append(diff.Added, c)
			newUniqueBytes += uint64(c.Length)
		}
	}
	for h, c := range oldSet {
		if _, ok := newSet[h]; !ok {
			diff.Removed = append(diff.Removed, c)
			diff.BytesChanged += uint64(c.Length)
		}
	}
	diff.BytesChanged += newUniqueBytes

	if newAsset.Size > 0 {
		diff.PercentChanged = float64(newUniqueBytes) / float64(newAsset.Size)
	}
	return diff
}
