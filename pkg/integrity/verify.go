package integrity

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/objectstore"
)

// Mismatch records one object that failed verification.
type Mismatch struct {
	Kind objectstore.Kind
	Hash hashutil.Hash
	Err  error
}

// Report is the outcome of a verify run.
type Report struct {
	Scanned    int
	Mismatches []Mismatch
}

// ScopeKind selects what Verify walks.
type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeCommit
	ScopeTree
	ScopeAsset
)

// Scope pins Verify to either the whole store (ScopeAll, Hash ignored) or
// the subgraph reachable from a single commit/tree/asset.
type Scope struct {
	Kind ScopeKind
	Hash hashutil.Hash
}

// Verify reads every object scope reaches through store.Get and reports
// mismatches. store.Get performs the lazy per-process digest check, so an
// object is re-hashed the first time this process reads it; Verify's
// job is to keep walking past a single bad object instead of stopping at
// the first one, so a single corrupt chunk doesn't hide every other
// problem in the same run.
func Verify(ctx context.Context, store *objectstore.Store, scope Scope, concurrency int) (*Report, error) {
	if scope.Kind == ScopeAll {
		return verifyAll(ctx, store, concurrency)
	}
	return verifySubgraph(store, scope)
}

func verifySubgraph(store *objectstore.Store, scope Scope) (*Report, error) {
	report := &Report{}
	visit := func(obj graphObject) error {
		report.Scanned++
		if _, err := store.Get(obj.kind, obj.hash); err != nil {
			report.Mismatches = append(report.Mismatches, Mismatch{Kind: obj.kind, Hash: obj.hash, Err: err})
		}
		return nil
	}

	var err error
	switch scope.Kind {
	case ScopeCommit:
		err = walkCommit(store, scope.Hash, visit)
	case ScopeTree:
		err = walkTree(store, scope.Hash, visit)
	case ScopeAsset:
		err = walkAsset(store, scope.Hash, visit)
	default:
		return nil, fmt.Errorf("integrity: unknown scope kind %d", scope.Kind)
	}
	if err != nil {
		return report, err
	}
	return report, nil
}

// verifyAll scans every object kind's full on-disk population, bounded to
// concurrency workers per kind.
func verifyAll(ctx context.Context, store *objectstore.Store, concurrency int) (*Report, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	kinds := []objectstore.Kind{objectstore.KindChunk, objectstore.KindAsset, objectstore.KindTree, objectstore.KindCommit}

	report := &Report{}
	var mu sync.Mutex

	for _, kind := range kinds {
		hashes, err := store.Iter(kind)
		if err != nil {
			return nil, fmt.Errorf("integrity: list %v objects: %w", kind, err)
		}

		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, concurrency)
		for _, h := range hashes {
			h := h
			g.Go(func() error {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-gctx.Done():
					return gctx.Err()
				}
				_, getErr := store.Get(kind, h)
				mu.Lock()
				report.Scanned++
				if getErr != nil {
					report.Mismatches = append(report.Mismatches, Mismatch{Kind: kind, Hash: h, Err: getErr})
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
	}
	return report, nil
}
