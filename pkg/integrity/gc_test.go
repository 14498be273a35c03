package integrity

import (
	"testing"
	"time"

	"github.com/dits-vcs/dits/internal/index"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/internal/refs"
)

func newTestRefs(t *testing.T) *refs.Store {
	t.Helper()
	return refs.Open(t.TempDir())
}

func TestGCSweepsUnreachableObjectsOnly(t *testing.T) {
	store := newTestStore(t)
	refStore := newTestRefs(t)
	idx := index.New()

	liveAsset := putAsset(t, store, []byte("kept content"))
	liveTree := putTreeWithAsset(t, store, "a.txt", liveAsset)
	liveCommit := putCommit(t, store, liveTree)
	if err := refStore.Update(refs.Name(refs.HeadsPrefix+"main"), liveCommit, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	danglingAsset := putAsset(t, store, []byte("orphaned content"))

	report, err := GC(store, refStore, idx, 0)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if report.Reachable != 4 { // commit + tree + asset + chunk
		t.Fatalf("expected 4 reachable objects, got %d", report.Reachable)
	}
	if report.Swept[objectstore.KindAsset] != 1 {
		t.Fatalf("expected 1 asset swept, got %d", report.Swept[objectstore.KindAsset])
	}
	if report.Swept[objectstore.KindChunk] != 1 {
		t.Fatalf("expected 1 chunk swept, got %d", report.Swept[objectstore.KindChunk])
	}

	if !store.Has(objectstore.KindCommit, liveCommit) {
		t.Fatal("live commit should survive GC")
	}
	if store.Has(objectstore.KindAsset, danglingAsset) {
		t.Fatal("dangling asset should have been swept")
	}
}

func TestGCKeepsStagedIndexAssetsAlive(t *testing.T) {
	store := newTestStore(t)
	refStore := newTestRefs(t)
	idx := index.New()

	stagedAsset := putAsset(t, store, []byte("staged but not committed"))
	idx.Stage(index.Entry{Path: "new.txt", AssetHash: stagedAsset, Mode: 0o644})

	report, err := GC(store, refStore, idx, 0)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if !store.Has(objectstore.KindAsset, stagedAsset) {
		t.Fatal("staged asset should survive GC via the index root")
	}
	if report.Swept[objectstore.KindAsset] != 0 {
		t.Fatalf("expected no assets swept, got %d", report.Swept[objectstore.KindAsset])
	}
}

func TestGCRespectsReflogGraceWindow(t *testing.T) {
	store := newTestStore(t)
	refStore := newTestRefs(t)
	idx := index.New()

	oldAsset := putAsset(t, store, []byte("old head content"))
	oldTree := putTreeWithAsset(t, store, "a.txt", oldAsset)
	oldCommit := putCommit(t, store, oldTree)

	newAsset := putAsset(t, store, []byte("new head content"))
	newTree := putTreeWithAsset(t, store, "a.txt", newAsset)
	newCommit := putCommit(t, store, newTree)

	if err := refStore.Update(refs.Name(refs.HeadsPrefix+"main"), oldCommit, nil); err != nil {
		t.Fatalf("Update (create): %v", err)
	}
	old := oldCommit
	if err := refStore.Update(refs.Name(refs.HeadsPrefix+"main"), newCommit, &old); err != nil {
		t.Fatalf("Update (cas): %v", err)
	}
	if err := refStore.AppendReflog(refs.Name(refs.HeadsPrefix+"main"), oldCommit, newCommit, "tester", "advance", time.Now().UnixNano()); err != nil {
		t.Fatalf("AppendReflog: %v", err)
	}

	// oldCommit is no longer the ref target but is within the reflog grace
	// window, so GC must still keep it (and its subgraph) reachable.
	report, err := GC(store, refStore, idx, time.Hour)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if !store.Has(objectstore.KindCommit, oldCommit) {
		t.Fatal("old commit within reflog grace window should survive GC")
	}
	if report.Swept[objectstore.KindCommit] != 0 {
		t.Fatalf("expected no commits swept within grace window, got %d", report.Swept[objectstore.KindCommit])
	}
}

func TestGCKeepsAncestorsReachableThroughParentsEvenWithZeroGrace(t *testing.T) {
	store := newTestStore(t)
	refStore := newTestRefs(t)
	idx := index.New()

	parentAsset := putAsset(t, store, []byte("parent content"))
	parentTree := putTreeWithAsset(t, store, "a.txt", parentAsset)
	parentCommit := putCommit(t, store, parentTree)

	childAsset := putAsset(t, store, []byte("child content"))
	childTree := putTreeWithAsset(t, store, "a.txt", childAsset)
	childCommit := putCommit(t, store, childTree, parentCommit)

	if err := refStore.Update(refs.Name(refs.HeadsPrefix+"main"), childCommit, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// No reflog entry at all for the parent commit, and grace is 0, so the
	// only thing keeping it alive is that it is childCommit's ancestor.
	report, err := GC(store, refStore, idx, 0)
	if err != nil {
		t.Fatalf("GC: %v", err)
	}
	if !store.Has(objectstore.KindCommit, parentCommit) {
		t.Fatal("parent commit reachable via the branch tip's ancestry should survive GC")
	}
	if !store.Has(objectstore.KindAsset, parentAsset) {
		t.Fatal("parent commit's asset should survive GC")
	}
	if report.Swept[objectstore.KindCommit] != 0 {
		t.Fatalf("expected no commits swept, got %d", report.Swept[objectstore.KindCommit])
	}
}
