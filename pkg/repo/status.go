package repo

import (
	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/pkg/ingest"
)

// Status is the combined worktree-vs-index and index-vs-HEAD comparison a
// `status` command needs: what's changed on disk that isn't staged, and
// what's staged that isn't in HEAD yet.
type Status struct {
	Worktree index.WorktreeDiff
	Staged   index.HeadDiff
}

// Status reports both diff views in one call.
func (r *Repository) Status() (Status, error) {
	idx, err := r.readIndex()
	if err != nil {
		return Status{}, err
	}

	worktreeDiff, err := index.DiffWorktree(idx, r.Root, ingest.Walk)
	if err != nil {
		return Status{}, err
	}

	headEntries, err := r.flattenHeadTree()
	if err != nil {
		return Status{}, err
	}
	staged := index.DiffHead(idx, headEntries)

	return Status{Worktree: worktreeDiff, Staged: staged}, nil
}
