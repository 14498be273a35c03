// Package integrity implements object-graph verification and garbage
// collection: re-hashing every reachable object on demand, and a
// mark-sweep collector rooted at refs, their reflogs within a grace
// window, and the staging index. The bounded-concurrency walk is grounded
// on golang.org/x/sync/errgroup the same way pkg/ingest uses it for
// its producer/consumer pipeline.
package integrity


import (
	"fmt"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
)

// graphObject identifies one node in the commit/tree/asset/chunk graph.
type graphObject struct {
	kind objectstore.Kind
	hash hashutil.Hash
}

// GraphObject is the exported form of graphObject, for callers outside
// this package (pkg/bundle's export walk) that need to enumerate a
// commit's reachable objects without duplicating the traversal.
type GraphObject struct {
	Kind objectstore.Kind
	Hash hashutil.Hash
}

// WalkCommit visits h and every object reachable from it (tree,
// sub-trees, assets, chunks), in the same order walkCommit uses
// internally for Verify and GC.
func WalkCommit(store *objectstore.Store, h hashutil.Hash, visit func(GraphObject) error) error {
	return walkCommit(store, h, func(obj graphObject) error {
		return visit(GraphObject{Kind: obj.kind, Hash: obj.hash})
	})
}

// walkCommit visits h and every object reachable from it: its tree, every
// sub-tree, every asset, every chunk, and — recursively — every ancestor
// reachable through commit.Parents, invoking visit once per object. A
// commit already visited (a shared ancestor reached through more than one
// branch of the DAG) is not walked again. visit returning an error aborts
// the walk and is returned from walkCommit.
func walkCommit(store *objectstore.Store, h hashutil.Hash, visit func(graphObject) error) error {
	return walkCommitFrom(store, h, map[hashutil.Hash]bool{}, visit)
}

func walkCommitFrom(store *objectstore.Store, h hashutil.Hash, visited map[hashutil.Hash]bool, visit func(graphObject) error) error {
	if visited[h] {
		return nil
	}
	visited[h] = true

	if err := visit(graphObject{objectstore.KindCommit, h}); err != nil {
		return err
	}
	raw, err := store.Get(objectstore.KindCommit, h)
	if err != nil {
		return fmt.Errorf("integrity: load commit %s: %w", h, err)
	}
	commit, err := manifest.DecodeCommit(raw)
	if err != nil {
		return fmt.Errorf("integrity: decode commit %s: %w", h, err)
	}
	if err := walkTree(store, commit.TreeHash, visit); err != nil {
		return err
	}

	parents, err := commitParents(store)(h)
	if err != nil {
		return fmt.Errorf("integrity: load parents of %s: %w", h, err)
	}
	for _, p := range parents {
		if err := walkCommitFrom(store, p, visited, visit); err != nil {
			return err
		}
	}
	return nil
}

// commitParents loads a commit's parent hashes, matching the
// refs.CommitParents function shape so the same DAG-walk algorithms apply.
func commitParents(store *objectstore.Store) func(hashutil.Hash) ([]hashutil.Hash, error) {
	return func(h hashutil.Hash) ([]hashutil.Hash, error) {
		raw, err := store.Get(objectstore.KindCommit, h)
		if err != nil {
			return nil, err
		}
		commit, err := manifest.DecodeCommit(raw)
		if err != nil {
			return nil, err
		}
		return commit.Parents, nil
	}
}

func walkTree(store *objectstore.Store, h hashutil.Hash, visit func(graphObject) error) error {
	if err := visit(graphObject{objectstore.KindTree, h}); err != nil {
		return err
	}
	raw, err := store.Get(objectstore.KindTree, h)
	if err != nil {
		return fmt.Errorf("integrity: load tree %s: %w", h, err)
	}
	tree, err := manifest.DecodeTree(raw)
	if err != nil {
		return fmt.Errorf("integrity: decode tree %s: %w", h, err)
	}
	for _, e := range tree.Entries {
		switch e.Kind {
		case manifest.EntryTree:
			if err := walkTree(store, e.Hash, visit); err != nil {
				return err
			}
		case manifest.EntryAsset:
			if err := walkAsset(store, e.Hash, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func walkAsset(store *objectstore.Store, h hashutil.Hash, visit func(graphObject) error) error {
	if err := visit(graphObject{objectstore.KindAsset, h}); err != nil {
		return err
	}
	raw, err := store.Get(objectstore.KindAsset, h)
	if err != nil {
		return fmt.Errorf("integrity: load asset %s: %w", h, err)
	}
	asset, err := manifest.DecodeAsset(raw)
	if err != nil {
		return fmt.Errorf("integrity: decode asset %s: %w", h, err)
	}
	for _, c := range asset.Chunks {
		if err := visit(graphObject{objectstore.KindChunk, c.Hash}); err != nil {
			return err
		}
	}
	if asset.ContainerMetadata != nil {
		if err := visit(graphObject{objectstore.KindChunk, asset.ContainerMetadata.Hash}); err != nil {
			return err
		}
	}
	return nil
}
