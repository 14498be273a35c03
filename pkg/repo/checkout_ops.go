package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/pkg/checkout"
)

// checkoutCommit materializes commit's tree into the working copy and
// replaces the index's staged entries with what was just written.
func (r *Repository) checkoutCommit(h hashutil.Hash) error {
	commit, err := r.loadCommit(h)
	if err != nil {
		return fmt.Errorf("repo: load commit %s: %w", h, err)
	}
	tree, err := r.loadTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("repo: load tree %s: %w", commit.TreeHash, err)
	}
	entries, err := index.FlattenTree(tree, r.loadTree)
	if err != nil {
		return fmt.Errorf("repo: flatten tree: %w", err)
	}

	return r.withIndex(func(idx *index.Index) error {
		for _, existing := range idx.Entries() {
			idx.Remove(existing.Path)
		}
		for _, e := range entries {
			if err := r.checkoutAssetTo(e.Path, e.Hash); err != nil {
				return err
			}
			info, err := os.Stat(filepath.Join(r.Root, e.Path))
			if err != nil {
				return err
			}
			idx.Stage(index.Entry{
				Path:      e.Path,
				AssetHash: e.Hash,
				Mode:      uint32(info.Mode().Perm()),
				Size:      uint64(info.Size()),
				ModTime:   info.ModTime().UnixNano(),
				Inode:     index.StatInode(info),
			})
		}
		return nil
	})
}

// checkoutAssetTo reconstructs the asset at assetHash into path, relative
// to the repository root.
func (r *Repository) checkoutAssetTo(relPath string, assetHash hashutil.Hash) error {
	raw, err := r.Store.Get(objectstore.KindAsset, assetHash)
	if err != nil {
		return fmt.Errorf("repo: load asset for %s: %w", relPath, err)
	}
	asset, err := manifest.DecodeAsset(raw)
	if err != nil {
		return fmt.Errorf("repo: decode asset for %s: %w", relPath, err)
	}

	dest := filepath.Join(r.Root, relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return checkout.File(r.Store, asset, dest, r.Config.Core.BigFileThreshold)
}

// Restore reconstructs paths from HEAD (or, if commitHash is set, from
// that commit) into the working tree and updates their index entries to
// match, without touching any other staged path.
func (r *Repository) Restore(paths []string, commitHash *hashutil.Hash) error {
	var treeEntries []struct {
		Path string
		Hash hashutil.Hash
	}
	var err error
	if commitHash != nil {
		commit, loadErr := r.loadCommit(*commitHash)
		if loadErr != nil {
			return fmt.Errorf("repo: load commit %s: %w", *commitHash, loadErr)
		}
		tree, loadErr := r.loadTree(commit.TreeHash)
		if loadErr != nil {
			return loadErr
		}
		treeEntries, err = index.FlattenTree(tree, r.loadTree)
	} else {
		treeEntries, err = r.flattenHeadTree()
	}
	if err != nil {
		return err
	}

	byPath := map[string]hashutil.Hash{}
	for _, e := range treeEntries {
		byPath[e.Path] = e.Hash
	}

	return r.withIndex(func(idx *index.Index) error {
		for _, p := range paths {
			h, ok := byPath[p]
			if !ok {
				return fmt.Errorf("repo: %s not found in source tree", p)
			}
			if err := r.checkoutAssetTo(p, h); err != nil {
				return err
			}
			info, err := os.Stat(filepath.Join(r.Root, p))
			if err != nil {
				return err
			}
			idx.Stage(index.Entry{
				Path:      p,
				AssetHash: h,
				Mode:      uint32(info.Mode().Perm()),
				Size:      uint64(info.Size()),
				ModTime:   info.ModTime().UnixNano(),
				Inode:     index.StatInode(info),
			})
		}
		return nil
	})
}
