package diffmerge

import (
	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/index"
)

// Outcome is the result of applying the three-way file-level merge policy
// to a single path's (base, ours, theirs) asset hashes.
type Outcome int

const (
	// OutcomeResolved means a single winning asset hash was chosen; it
	// belongs at stage 0.
	OutcomeResolved Outcome = iota
	// OutcomeConflict means all three hashes differ pairwise; the caller
	// must stage base/ours/theirs at slots 1/2/3 and leave slot 0 empty.
	OutcomeConflict
)

// Result is what ResolveFile returns: either a single resolved hash, or a
// conflict outcome. A conflict carries no hashes; the caller stages the
// base/ours/theirs hashes it already holds.
type Result struct {
	Outcome  Outcome
	Resolved hashutil.Hash // valid only when Outcome == OutcomeResolved
}

// ResolveFile applies dits' three-way file-level merge policy: the core
// never content-merges binaries, only chooses between whole-file versions
// or declares a conflict.
//
//   - base == ours, base != theirs -> theirs (theirs changed, ours didn't)
//   - base == theirs, base != ours -> ours (ours changed, theirs didn't)
//   - ours == theirs               -> ours (converged edits)
//   - otherwise                    -> conflict
func ResolveFile(base, ours, theirs hashutil.Hash) Result {
	switch {
	case base == ours && base != theirs:
		return Result{Outcome: OutcomeResolved, Resolved: theirs}
	case base == theirs && base != ours:
		return Result{Outcome: OutcomeResolved, Resolved: ours}
	case ours == theirs:
		return Result{Outcome: OutcomeResolved, Resolved: ours}
	default:
		return Result{Outcome: OutcomeConflict}
	}
}

// ApplyToIndex stages the outcome of ResolveFile for path into idx. On
// OutcomeResolved it stages a normal entry carrying the winning hash; on
// OutcomeConflict it records base/ours/theirs at the conflict stages and
// leaves no stage-0 entry, matching the index's unmerged-path invariant.
func ApplyToIndex(idx *index.Index, path string, mode uint32, base, ours, theirs hashutil.Hash, result Result) {
	if result.Outcome == OutcomeResolved {
		idx.Stage(index.Entry{Path: path, AssetHash: result.Resolved, Mode: mode})
		return
	}

	baseEntry := &index.Entry{Path: path, AssetHash: base, Mode: mode}
	oursEntry := &index.Entry{Path: path, AssetHash: ours, Mode: mode}
	theirsEntry := &index.Entry{Path: path, AssetHash: theirs, Mode: mode}
	idx.StageConflict(path, baseEntry, oursEntry, theirsEntry)
}
