package integrity

import (
	"context"
	"os"
	"testing"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
)

func newTestStore(t *testing.T) *objectstore.Store {
	t.Helper()
	s, err := objectstore.Open(t.TempDir(), 5)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func putAsset(t *testing.T, store *objectstore.Store, content []byte) hashutil.Hash {
	t.Helper()
	chunkHash, _, err := store.Put(objectstore.KindChunk, content)
	if err != nil {
		t.Fatalf("put chunk: %v", err)
	}
	asset := &manifest.Asset{
		Size:        uint64(len(content)),
		ContentKind: manifest.KindOpaque,
		Chunks:      []manifest.ChunkRef{{Hash: chunkHash, Offset: 0, Length: uint32(len(content))}},
		ContentHash: hashutil.Bytes(content),
	}
	h, _, err := store.Put(objectstore.KindAsset, asset.Encode())
	if err != nil {
		t.Fatalf("put asset: %v", err)
	}
	return h
}

func putTreeWithAsset(t *testing.T, store *objectstore.Store, name string, assetHash hashutil.Hash) hashutil.Hash {
	t.Helper()
	tree := &manifest.Tree{Entries: []manifest.TreeEntry{{Name: name, Kind: manifest.EntryAsset, Hash: assetHash, Mode: 0o644}}}
	tree.Sort()
	h, _, err := store.Put(objectstore.KindTree, tree.Encode())
	if err != nil {
		t.Fatalf("put tree: %v", err)
	}
	return h
}

func putCommit(t *testing.T, store *objectstore.Store, treeHash hashutil.Hash, parents ...hashutil.Hash) hashutil.Hash {
	t.Helper()
	commit := &manifest.Commit{
		TreeHash:   treeHash,
		Parents:    parents,
		Author:     "tester <t@example.com>",
		Committer:  "tester <t@example.com>",
		TimestampN: 1700000000000000000,
		Message:    "test commit",
	}
	h, _, err := store.Put(objectstore.KindCommit, commit.Encode())
	if err != nil {
		t.Fatalf("put commit: %v", err)
	}
	return h
}

func TestVerifyAllFindsNoMismatchesOnCleanStore(t *testing.T) {
	store := newTestStore(t)
	assetHash := putAsset(t, store, []byte("hello world"))
	treeHash := putTreeWithAsset(t, store, "a.txt", assetHash)
	putCommit(t, store, treeHash)

	report, err := Verify(context.Background(), store, Scope{Kind: ScopeAll}, 2)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.Mismatches) != 0 {
		t.Fatalf("expected no mismatches, got %+v", report.Mismatches)
	}
	if report.Scanned != 4 {
		t.Fatalf("expected 4 objects scanned (chunk+asset+tree+commit), got %d", report.Scanned)
	}
}

func TestVerifyAllDetectsCorruptChunk(t *testing.T) {
	store := newTestStore(t)
	content := []byte("some content to corrupt")
	chunkHash, _, err := store.Put(objectstore.KindChunk, content)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	objPath := store.Path(objectstore.KindChunk, chunkHash)
	raw, err := os.ReadFile(objPath)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(objPath, raw, 0o644); err != nil {
		t.Fatalf("rewrite object: %v", err)
	}

	report, err := Verify(context.Background(), store, Scope{Kind: ScopeAll}, 2)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.Mismatches) != 1 {
		t.Fatalf("expected exactly one mismatch, got %+v", report.Mismatches)
	}
}

func TestVerifyCommitScopeWalksSubgraph(t *testing.T) {
	store := newTestStore(t)
	assetHash := putAsset(t, store, []byte("tracked content"))
	treeHash := putTreeWithAsset(t, store, "a.txt", assetHash)
	commitHash := putCommit(t, store, treeHash)

	report, err := Verify(context.Background(), store, Scope{Kind: ScopeCommit, Hash: commitHash}, 1)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	// commit + tree + asset + chunk
	if report.Scanned != 4 {
		t.Fatalf("expected 4 objects scanned, got %d", report.Scanned)
	}
	if len(report.Mismatches) != 0 {
		t.Fatalf("expected no mismatches, got %+v", report.Mismatches)
	}
}
