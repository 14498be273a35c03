package index

import (
	"os"
	"path/filepath"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
)

// WorktreeDiff is the result of comparing the index against the live
// filesystem.
type WorktreeDiff struct {
	Unmodified []string
	Modified   []string
	Deleted    []string
	Untracked  []string
}

// DiffWorktree compares recorded (size, mtime, inode) stats against the
// filesystem under root to classify every tracked and untracked path.
// Content comparison is never forced: a stat match is trusted as
// unmodified.
func DiffWorktree(idx *Index, root string, walk func(root string) ([]string, error)) (WorktreeDiff, error) {
	var diff WorktreeDiff
	tracked := make(map[string]Entry)
	for _, e := range idx.Entries() {
		tracked[e.Path] = e
	}

	seen := make(map[string]bool)
	paths, err := walk(root)
	if err != nil {
		return diff, err
	}
	for _, rel := range paths {
		seen[rel] = true
		e, ok := tracked[rel]
		if !ok {
			diff.Untracked = append(diff.Untracked, rel)
			continue
		}
		info, err := os.Lstat(filepath.Join(root, rel))
		if err != nil {
			diff.Deleted = append(diff.Deleted, rel)
			continue
		}
		if statMatches(e, info) {
			diff.Unmodified = append(diff.Unmodified, rel)
		} else {
			diff.Modified = append(diff.Modified, rel)
		}
	}
	for path := range tracked {
		if !seen[path] {
			diff.Deleted = append(diff.Deleted, path)
		}
	}
	return diff, nil
}

func statMatches(e Entry, info os.FileInfo) bool {
	return e.Size == uint64(info.Size()) &&
		e.ModTime == info.ModTime().UnixNano() &&
		e.Inode == StatInode(info)
}

// HeadDiff is the result of comparing the index against a committed tree.
type HeadDiff struct {
	Added    []string
	Modified []string
	Deleted  []string
	// Renamed maps a new path to the old path it was detected to have been
	// renamed from (same asset hash, different path). No similarity
	// heuristics are used.
	Renamed map[string]string
}

// headEntry is the minimal shape DiffHead needs from a flattened committed
// tree; callers (pkg/repo) build this by walking the tree recursively.
type headEntry struct {
	Path string
	Hash hashutil.Hash
}

// DiffHead compares the index's stage-0 entries against a flattened list of
// the HEAD tree's asset entries.
func DiffHead(idx *Index, head []struct {
	Path string
	Hash hashutil.Hash
}) HeadDiff {
	var diff HeadDiff
	diff.Renamed = map[string]string{}

	headByPath := map[string]hashutil.Hash{}
	headByHash := map[hashutil.Hash]string{}
	for _, h := range head {
		headByPath[h.Path] = h.Hash
		headByHash[h.Hash] = h.Path
	}

	staged := idx.Entries()
	stagedPaths := map[string]bool{}
	for _, e := range staged {
		stagedPaths[e.Path] = true
		oldHash, existed := headByPath[e.Path]
		switch {
		case !existed:
			if oldPath, moved := headByHash[e.AssetHash]; moved && !stagedAtSamePath(staged, oldPath) {
				diff.Renamed[e.Path] = oldPath
			} else {
				diff.Added = append(diff.Added, e.Path)
			}
		case oldHash != e.AssetHash:
			diff.Modified = append(diff.Modified, e.Path)
		}
	}
	for path := range headByPath {
		if !stagedPaths[path] {
			diff.Deleted = append(diff.Deleted, path)
		}
	}
	return diff
}

func stagedAtSamePath(entries []Entry, path string) bool {
	for _, e := range entries {
		if e.Path == path {
			return true
		}
	}
	return false
}

// flattenTree is a small helper pkg/repo reuses: walk a Tree recursively
// via a resolver callback (a tree hash -> Tree lookup), producing a flat
// list of (path, asset hash) pairs used by DiffHead.
func flattenTree(prefix string, t *manifest.Tree, resolve func(hashutil.Hash) (*manifest.Tree, error)) ([]struct {
	Path string
	Hash hashutil.Hash
}, error) {
	var out []struct {
		Path string
		Hash hashutil.Hash
	}
	for _, e := range t.Entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		switch e.Kind {
		case manifest.EntryAsset:
			out = append(out, struct {
				Path string
				Hash hashutil.Hash
			}{p, e.Hash})
		case manifest.EntryTree:
			sub, err := resolve(e.Hash)
			if err != nil {
				return nil, err
			}
			children, err := flattenTree(p, sub, resolve)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		}
	}
	return out, nil
}

// FlattenTree exports flattenTree for pkg/repo.
func FlattenTree(t *manifest.Tree, resolve func(hashutil.Hash) (*manifest.Tree, error)) ([]struct {
	Path string
	Hash hashutil.Hash
}, error) {
	return flattenTree("", t, resolve)
}
