package integrity

import (
	"fmt"
	"time"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/internal/refs"
)

// GCReport summarizes one collection run.
type GCReport struct {
	Reachable int
	Swept     map[objectstore.Kind]int
}

// GC marks every object reachable from (all refs) ∪ (reflog entries
// within grace) ∪ (staged index entries), then deletes everything else.
// Grace applies to reflog entries: commits named by an entry younger than
// grace stay reachable even after their ref has moved on. Object age is not
// consulted; any object not reached from these roots is swept.
func GC(store *objectstore.Store, refStore *refs.Store, idx *index.Index, grace time.Duration) (*GCReport, error) {
	reachable := map[graphObject]struct{}{}
	mark := func(obj graphObject) error {
		reachable[obj] = struct{}{}
		return nil
	}

	roots, err := collectRoots(refStore, grace)
	if err != nil {
		return nil, err
	}
	for _, h := range roots {
		if err := walkCommit(store, h, mark); err != nil {
			return nil, fmt.Errorf("integrity: walk from root %s: %w", h, err)
		}
	}

	for _, e := range idx.Entries() {
		if err := walkAsset(store, e.AssetHash, mark); err != nil {
			return nil, fmt.Errorf("integrity: walk staged asset %s: %w", e.AssetHash, err)
		}
	}
	for _, slots := range idx.Unmerged() {
		for _, e := range slots {
			if e == nil {
				continue
			}
			if err := walkAsset(store, e.AssetHash, mark); err != nil {
				return nil, fmt.Errorf("integrity: walk unmerged asset %s: %w", e.AssetHash, err)
			}
		}
	}

	report := &GCReport{Reachable: len(reachable), Swept: map[objectstore.Kind]int{}}
	for _, kind := range []objectstore.Kind{objectstore.KindChunk, objectstore.KindAsset, objectstore.KindTree, objectstore.KindCommit} {
		hashes, err := store.Iter(kind)
		if err != nil {
			return nil, fmt.Errorf("integrity: list %v objects: %w", kind, err)
		}
		for _, h := range hashes {
			if _, ok := reachable[graphObject{kind, h}]; ok {
				continue
			}
			if err := store.Delete(kind, h); err != nil {
				return nil, fmt.Errorf("integrity: delete %v %s: %w", kind, h, err)
			}
			report.Swept[kind]++
		}
	}
	return report, nil
}

// collectRoots gathers every commit hash a ref currently points at, plus
// every old/new commit hash recorded in a reflog entry newer than the
// grace cutoff.
func collectRoots(refStore *refs.Store, grace time.Duration) ([]hashutil.Hash, error) {
	var roots []hashutil.Hash
	seen := map[hashutil.Hash]bool{}
	add := func(h hashutil.Hash) {
		if !h.Zero() && !seen[h] {
			seen[h] = true
			roots = append(roots, h)
		}
	}

	names := []refs.Name{refs.Head}
	for _, prefix := range []string{refs.HeadsPrefix, refs.TagsPrefix, refs.RemotesPrefix} {
		listed, err := refStore.List(prefix)
		if err != nil {
			return nil, fmt.Errorf("integrity: list refs under %s: %w", prefix, err)
		}
		names = append(names, listed...)
	}

	cutoff := time.Now().Add(-grace)
	for _, name := range names {
		h, err := refStore.Resolve(name)
		if err == nil {
			add(h)
		}

		entries, err := refStore.Reflog(name)
		if err != nil {
			continue // no reflog for this ref is not an error
		}
		for _, e := range entries {
			if time.Unix(0, e.TimestampN).After(cutoff) {
				add(e.Old)
				add(e.New)
			}
		}
	}
	return roots, nil
}
