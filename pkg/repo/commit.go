package repo

import (
	"errors"
	"fmt"
	"time"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/internal/refs"
)

// ErrNothingToCommit is returned when a commit would produce a tree
// identical to HEAD's (no staged changes).
var ErrNothingToCommit = errors.New("repo: nothing to commit")

// ErrUnmergedPaths is returned when Commit is attempted while the index
// still has unresolved merge conflicts.
var ErrUnmergedPaths = errors.New("repo: unmerged paths, resolve conflicts before committing")

// CommitOptions carries the author/committer identity and message for a
// new commit. An empty Author defaults to the [user] section's name/email;
// an empty Committer defaults to the Author.
type CommitOptions struct {
	Author    string
	Committer string
	Message   string
}

// Commit builds a tree from the currently staged index, writes a commit
// object with HEAD's current commit as its sole parent, and advances the
// current branch to it via compare-and-swap.
func (r *Repository) Commit(opts CommitOptions) (hashutil.Hash, error) {
	idx, err := r.readIndex()
	if err != nil {
		return hashutil.Hash{}, err
	}
	if len(idx.Unmerged()) > 0 {
		return hashutil.Hash{}, ErrUnmergedPaths
	}

	treeHash, err := r.buildTree(idx.Entries())
	if err != nil {
		return hashutil.Hash{}, fmt.Errorf("repo: build tree: %w", err)
	}

	parentHash, hasParent, err := r.headCommit()
	if err != nil {
		return hashutil.Hash{}, err
	}
	if hasParent {
		parentCommit, err := r.loadCommit(parentHash)
		if err != nil {
			return hashutil.Hash{}, fmt.Errorf("repo: load HEAD commit: %w", err)
		}
		if parentCommit.TreeHash == treeHash {
			return hashutil.Hash{}, ErrNothingToCommit
		}
	}

	author := opts.Author
	if author == "" {
		author = r.identity()
	}
	committer := opts.Committer
	if committer == "" {
		committer = author
	}

	commit := &manifest.Commit{
		TreeHash:   treeHash,
		Author:     author,
		Committer:  committer,
		TimestampN: time.Now().UnixNano(),
		Message:    opts.Message,
	}
	if hasParent {
		commit.Parents = []hashutil.Hash{parentHash}
	}
	generation, err := r.generationFor(commit.Parents)
	if err != nil {
		return hashutil.Hash{}, fmt.Errorf("repo: compute generation: %w", err)
	}
	commit.Generation = generation

	commitHash, _, err := r.Store.Put(objectstore.KindCommit, commit.Encode())
	if err != nil {
		return hashutil.Hash{}, fmt.Errorf("repo: store commit: %w", err)
	}

	if err := r.advanceCurrentBranch(commitHash, parentHash, hasParent, committer, opts.Message); err != nil {
		return hashutil.Hash{}, err
	}
	return commitHash, nil
}

// generationFor computes the generation number a commit with the given
// parents should carry: 0 for a root commit, one more than the highest
// parent generation otherwise. This cached value is what lets MergeBase
// expand the DAG frontier in generation order instead of an unguided walk.
func (r *Repository) generationFor(parents []hashutil.Hash) (uint64, error) {
	var max uint64
	for _, p := range parents {
		parentCommit, err := r.loadCommit(p)
		if err != nil {
			return 0, err
		}
		if parentCommit.Generation+1 > max {
			max = parentCommit.Generation + 1
		}
	}
	return max, nil
}

func (r *Repository) identity() string {
	if r.Config.User.Name == "" {
		return r.Config.User.Email
	}
	if r.Config.User.Email == "" {
		return r.Config.User.Name
	}
	return fmt.Sprintf("%s <%s>", r.Config.User.Name, r.Config.User.Email)
}

// advanceCurrentBranch CAS-updates the branch HEAD currently points at (or
// HEAD itself if detached) from old to newHash, then appends one reflog
// entry to the ref it updated: the branch when HEAD is attached, HEAD
// when detached.
func (r *Repository) advanceCurrentBranch(newHash, oldHash hashutil.Hash, hadOld bool, committer, message string) error {
	target, attached, err := r.Refs.ReadHeadTarget()
	if err != nil {
		return fmt.Errorf("repo: read HEAD: %w", err)
	}

	var old *hashutil.Hash
	if hadOld {
		old = &oldHash
	}

	if attached {
		if err := r.Refs.Update(target, newHash, old); err != nil {
			return fmt.Errorf("repo: advance %s: %w", target, err)
		}
		if err := r.Refs.AppendReflog(target, oldHash, newHash, committer, message, time.Now().UnixNano()); err != nil {
			return fmt.Errorf("repo: append reflog for %s: %w", target, err)
		}
		return nil
	}

	if err := r.Refs.SetHeadDetached(newHash); err != nil {
		return fmt.Errorf("repo: advance detached HEAD: %w", err)
	}
	if err := r.Refs.AppendReflog(refs.Head, oldHash, newHash, committer, message, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("repo: append reflog for HEAD: %w", err)
	}
	return nil
}
