package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/dits-vcs/dits/pkg/integrity"
)

// DefaultGCGrace is how long a reflog entry keeps the commits it names
// reachable for GC after their ref has moved on.
const DefaultGCGrace = 2 * time.Hour

// Fsck re-hashes every object scope reaches (or the whole store, for
// integrity.ScopeAll) and reports any digest mismatches.
func (r *Repository) Fsck(ctx context.Context, scope integrity.Scope, concurrency int) (*integrity.Report, error) {
	return integrity.Verify(ctx, r.Store, scope, concurrency)
}

// GC deletes every object not reachable from a ref, a reflog entry
// within grace, or the staged index (including unmerged conflict
// slots).
func (r *Repository) GC(grace time.Duration) (*integrity.GCReport, error) {
	idx, err := r.readIndex()
	if err != nil {
		return nil, fmt.Errorf("repo: load index for gc: %w", err)
	}
	return integrity.GC(r.Store, r.Refs, idx, grace)
}
