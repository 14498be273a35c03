package repo

import (
	"errors"
	"fmt"
	"time"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/internal/refs"
	"github.com/dits-vcs/dits/pkg/diffmerge"
)

// ErrNoCommonAncestor is returned when two branches share no history at
// all, which the three-way policy cannot merge.
var ErrNoCommonAncestor = errors.New("repo: branches share no common ancestor")

// MergeResult reports what Merge did: a fast-forward, a clean merge
// commit, or a set of unresolved conflicts left staged in the index.
type MergeResult struct {
	FastForward bool
	CommitHash  hashutil.Hash
	Conflicts   []string
}

// Merge merges theirsBranch into the branch HEAD currently points at.
func (r *Repository) Merge(theirsBranch string, opts CommitOptions) (MergeResult, error) {
	oursHash, ok, err := r.headCommit()
	if err != nil {
		return MergeResult{}, err
	}
	if !ok {
		return MergeResult{}, fmt.Errorf("repo: cannot merge with no commits on HEAD yet")
	}

	theirsHash, err := r.Refs.Resolve(refs.Name(refs.HeadsPrefix + theirsBranch))
	if err != nil {
		return MergeResult{}, fmt.Errorf("repo: branch %s not found: %w", theirsBranch, err)
	}

	base, found, err := refs.MergeBase(oursHash, theirsHash, r.commitInfoFunc())
	if err != nil {
		return MergeResult{}, fmt.Errorf("repo: find merge base: %w", err)
	}
	if !found {
		return MergeResult{}, ErrNoCommonAncestor
	}

	if base == theirsHash {
		// theirs is already an ancestor of ours: nothing to do.
		return MergeResult{FastForward: true, CommitHash: oursHash}, nil
	}
	if base == oursHash {
		if err := r.fastForwardTo(theirsHash); err != nil {
			return MergeResult{}, err
		}
		return MergeResult{FastForward: true, CommitHash: theirsHash}, nil
	}

	return r.threeWayMerge(base, oursHash, theirsHash, opts)
}

// commitInfoFunc adapts loadCommit into the refs.CommitInfoFunc MergeBase
// needs, exposing each commit's cached generation number and timestamp
// alongside its parent edges.
func (r *Repository) commitInfoFunc() refs.CommitInfoFunc {
	return func(h hashutil.Hash) (refs.CommitInfo, error) {
		commit, err := r.loadCommit(h)
		if err != nil {
			return refs.CommitInfo{}, err
		}
		return refs.CommitInfo{
			Parents:    commit.Parents,
			Generation: commit.Generation,
			Timestamp:  commit.TimestampN,
		}, nil
	}
}

func (r *Repository) fastForwardTo(h hashutil.Hash) error {
	oursHash, _, err := r.headCommit()
	if err != nil {
		return err
	}
	if err := r.advanceCurrentBranch(h, oursHash, true, r.identity(), "fast-forward merge"); err != nil {
		return err
	}
	return r.checkoutCommit(h)
}

func (r *Repository) threeWayMerge(base, ours, theirs hashutil.Hash, opts CommitOptions) (MergeResult, error) {
	baseEntries, err := r.flattenCommitTree(base)
	if err != nil {
		return MergeResult{}, err
	}
	oursEntries, err := r.flattenCommitTree(ours)
	if err != nil {
		return MergeResult{}, err
	}
	theirsEntries, err := r.flattenCommitTree(theirs)
	if err != nil {
		return MergeResult{}, err
	}

	baseByPath := pathMap(baseEntries)
	oursByPath := pathMap(oursEntries)
	theirsByPath := pathMap(theirsEntries)

	paths := map[string]bool{}
	for p := range baseByPath {
		paths[p] = true
	}
	for p := range oursByPath {
		paths[p] = true
	}
	for p := range theirsByPath {
		paths[p] = true
	}

	var conflicts []string
	err = r.withIndex(func(idx *index.Index) error {
		for path := range paths {
			baseHash := baseByPath[path]
			oursHash := oursByPath[path]
			theirsHash := theirsByPath[path]

			result := diffmerge.ResolveFile(baseHash, oursHash, theirsHash)
			if result.Outcome == diffmerge.OutcomeConflict {
				conflicts = append(conflicts, path)
				diffmerge.ApplyToIndex(idx, path, 0o644, baseHash, oursHash, theirsHash, result)
				continue
			}
			if result.Resolved.Zero() {
				idx.Remove(path)
				continue
			}
			idx.Stage(index.Entry{Path: path, AssetHash: result.Resolved, Mode: 0o644})
		}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}
	if len(conflicts) > 0 {
		return MergeResult{Conflicts: conflicts}, nil
	}

	idx, err := r.readIndex()
	if err != nil {
		return MergeResult{}, err
	}
	treeHash, err := r.buildTree(idx.Entries())
	if err != nil {
		return MergeResult{}, fmt.Errorf("repo: build merge tree: %w", err)
	}

	author := opts.Author
	if author == "" {
		author = r.identity()
	}
	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("merge %s", theirs)
	}
	generation, err := r.generationFor([]hashutil.Hash{ours, theirs})
	if err != nil {
		return MergeResult{}, fmt.Errorf("repo: compute merge commit generation: %w", err)
	}
	commit := &manifest.Commit{
		TreeHash:   treeHash,
		Parents:    []hashutil.Hash{ours, theirs},
		Generation: generation,
		Author:     author,
		Committer:  author,
		TimestampN: time.Now().UnixNano(),
		Message:    message,
	}
	commitHash, _, err := r.Store.Put(objectstore.KindCommit, commit.Encode())
	if err != nil {
		return MergeResult{}, fmt.Errorf("repo: store merge commit: %w", err)
	}
	if err := r.advanceCurrentBranch(commitHash, ours, true, author, message); err != nil {
		return MergeResult{}, err
	}
	if err := r.checkoutCommit(commitHash); err != nil {
		return MergeResult{}, err
	}
	return MergeResult{CommitHash: commitHash}, nil
}

func pathMap(entries []struct {
	Path string
	Hash hashutil.Hash
}) map[string]hashutil.Hash {
	out := make(map[string]hashutil.Hash, len(entries))
	for _, e := range entries {
		out[e.Path] = e.Hash
	}
	return out
}
