package repo

import (
	"fmt"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/pkg/diffmerge"
)

// PathDiff is one changed path between two trees, with its asset-level
// diff already computed.
type PathDiff struct {
	Path string
	Diff diffmerge.FileDiff
}

// DiffCommits compares two commits' trees and returns a per-path diff for
// every path whose asset hash changed between them.
func (r *Repository) DiffCommits(oldHash, newHash hashutil.Hash) ([]PathDiff, error) {
	oldEntries, err := r.flattenCommitTree(oldHash)
	if err != nil {
		return nil, err
	}
	newEntries, err := r.flattenCommitTree(newHash)
	if err != nil {
		return nil, err
	}

	oldByPath := map[string]hashutil.Hash{}
	for _, e := range oldEntries {
		oldByPath[e.Path] = e.Hash
	}
	newByPath := map[string]hashutil.Hash{}
	for _, e := range newEntries {
		newByPath[e.Path] = e.Hash
	}

	var out []PathDiff
	for path, newAssetHash := range newByPath {
		oldAssetHash, existed := oldByPath[path]
		if existed && oldAssetHash == newAssetHash {
			continue
		}
		var oldAsset *manifest.Asset
		if existed {
			oldAsset, err = r.loadAsset(oldAssetHash)
			if err != nil {
				return nil, err
			}
		} else {
			oldAsset = &manifest.Asset{ContentKind: manifest.KindOpaque}
		}
		newAsset, err := r.loadAsset(newAssetHash)
		if err != nil {
			return nil, err
		}
		d, err := diffmerge.DiffAssets(r.Store, oldAsset, newAsset)
		if err != nil {
			return nil, fmt.Errorf("repo: diff %s: %w", path, err)
		}
		out = append(out, PathDiff{Path: path, Diff: d})
	}
	return out, nil
}

func (r *Repository) flattenCommitTree(h hashutil.Hash) ([]struct {
	Path string
	Hash hashutil.Hash
}, error) {
	commit, err := r.loadCommit(h)
	if err != nil {
		return nil, fmt.Errorf("repo: load commit %s: %w", h, err)
	}
	tree, err := r.loadTree(commit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("repo: load tree %s: %w", commit.TreeHash, err)
	}
	return index.FlattenTree(tree, r.loadTree)
}

func (r *Repository) loadAsset(h hashutil.Hash) (*manifest.Asset, error) {
	raw, err := r.Store.Get(objectstore.KindAsset, h)
	if err != nil {
		return nil, err
	}
	return manifest.DecodeAsset(raw)
}
