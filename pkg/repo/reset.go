package repo

import (
	"fmt"
	"time"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/internal/refs"
)

// ResetMode selects how much of the working state Reset rewrites,
// mirroring git's soft/mixed/hard three-way split.
type ResetMode int

const (
	// ResetSoft moves the current branch only; the index and working
	// tree are left untouched.
	ResetSoft ResetMode = iota
	// ResetMixed moves the current branch and replaces the index with
	// target's tree, leaving the working tree untouched.
	ResetMixed
	// ResetHard moves the current branch, replaces the index, and
	// overwrites the working tree to match target.
	ResetHard
)

// Reset moves the branch HEAD currently points at (or HEAD itself if
// detached) to target, with index/working-tree effects controlled by
// mode.
func (r *Repository) Reset(target hashutil.Hash, mode ResetMode) error {
	if _, err := r.loadCommit(target); err != nil {
		return fmt.Errorf("repo: reset target %s: %w", target, err)
	}

	oldHash, hadOld, err := r.headCommit()
	if err != nil {
		return err
	}

	headTarget, attached, err := r.Refs.ReadHeadTarget()
	if err != nil {
		return fmt.Errorf("repo: read HEAD: %w", err)
	}

	var old *hashutil.Hash
	if hadOld {
		old = &oldHash
	}
	if attached {
		if err := r.Refs.Update(headTarget, target, old); err != nil {
			return fmt.Errorf("repo: reset %s: %w", headTarget, err)
		}
	} else {
		if err := r.Refs.SetHeadDetached(target); err != nil {
			return fmt.Errorf("repo: reset detached HEAD: %w", err)
		}
	}
	if err := r.Refs.AppendReflog(refs.Head, oldHash, target, r.identity(), "reset", time.Now().UnixNano()); err != nil {
		return fmt.Errorf("repo: append reflog for reset: %w", err)
	}

	if mode == ResetSoft {
		return nil
	}

	entries, err := r.flattenCommitTree(target)
	if err != nil {
		return err
	}
	if err := r.withIndex(func(idx *index.Index) error {
		for _, existing := range idx.Entries() {
			idx.Remove(existing.Path)
		}
		for _, e := range entries {
			idx.Stage(index.Entry{Path: e.Path, AssetHash: e.Hash, Mode: 0o644})
		}
		return nil
	}); err != nil {
		return fmt.Errorf("repo: rebuild index for reset: %w", err)
	}

	if mode == ResetMixed {
		return nil
	}
	return r.checkoutCommit(target)
}
