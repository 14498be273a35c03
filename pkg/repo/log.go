package repo

import (
	"fmt"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
)

// LogEntry pairs a commit's hash with its decoded body for display.
type LogEntry struct {
	Hash   hashutil.Hash
	Commit *manifest.Commit
}

// Log walks first-parent history from HEAD, stopping after limit entries
// (0 means unlimited).
func (r *Repository) Log(limit int) ([]LogEntry, error) {
	head, ok, err := r.headCommit()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var out []LogEntry
	cur := head
	for {
		commit, err := r.loadCommit(cur)
		if err != nil {
			return nil, fmt.Errorf("repo: load commit %s: %w", cur, err)
		}
		out = append(out, LogEntry{Hash: cur, Commit: commit})
		if limit > 0 && len(out) >= limit {
			break
		}
		if len(commit.Parents) == 0 {
			break
		}
		cur = commit.Parents[0]
	}
	return out, nil
}

// Show returns a single commit's decoded body by hash.
func (r *Repository) Show(h hashutil.Hash) (*manifest.Commit, error) {
	return r.loadCommit(h)
}
