package objectstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, 5)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	data := []byte("hello world, this is a chunk")

	h1, isNew1, err := s.Put(KindChunk, data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !isNew1 {
		t.Fatal("first put should be new")
	}

	h2, isNew2, err := s.Put(KindChunk, data)
	if err != nil {
		t.Fatalf("Put (again): %v", err)
	}
	if isNew2 {
		t.Fatal("second put of identical bytes should not be new")
	}
	if h1 != h2 {
		t.Fatal("put(x) must return the same hash both times")
	}
}

func TestGetAfterPutReturnsOriginalBytes(t *testing.T) {
	s := newTestStore(t)
	data := []byte("round trip through the object store")

	h, _, err := s.Put(KindAsset, data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(KindAsset, h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Fatal("get(put(x)) != x")
	}
	if !s.Has(KindAsset, h) {
		t.Fatal("has(put(x)) should be true")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	var h [32]byte
	_, err := s.Get(KindChunk, h)
	var nfErr *NotFoundError
	if err == nil {
		t.Fatal("expected error for missing object")
	}
	if !isNotFound(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v (%T)", err, err)
	}
}

func isNotFound(err error, target **NotFoundError) bool {
	if e, ok := err.(*NotFoundError); ok {
		*target = e
		return true
	}
	return false
}

func TestGetDetectsCorruption(t *testing.T) {
	s := newTestStore(t)
	data := []byte("some bytes that will be tampered with on disk")
	h, _, err := s.Put(KindChunk, data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	path := s.Path(KindChunk, h)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if _, err := s.Get(KindChunk, h); err == nil {
		t.Fatal("expected corruption to be detected")
	}
}

func TestConcurrentPutOfSameHashIsSafe(t *testing.T) {
	s := newTestStore(t)
	data := []byte("raced write")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Put(KindChunk, data); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent put failed: %v", err)
	}

	h, _, err := s.Put(KindChunk, data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(KindChunk, h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Fatal("data corrupted by concurrent writers")
	}
}

func TestIterListsStoredObjects(t *testing.T) {
	s := newTestStore(t)
	var hashes []interface{}
	for _, s1 := range []string{"a", "b", "c"} {
		h, _, err := s.Put(KindChunk, []byte(s1))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		hashes = append(hashes, h)
	}
	got, err := s.Iter(KindChunk)
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	if len(got) != len(hashes) {
		t.Fatalf("expected %d hashes, got %d", len(hashes), len(got))
	}
}

func TestFanOutLayout(t *testing.T) {
	s := newTestStore(t)
	h, _, err := s.Put(KindChunk, []byte("fan out check"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	path := s.Path(KindChunk, h)
	rel, err := filepath.Rel(s.Root(), path)
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	parts := filepath.SplitList(rel)
	_ = parts
	hex := h.String()
	want := filepath.Join("chunks", hex[:2], hex[2:])
	if rel != want {
		t.Fatalf("unexpected fan-out path: got %q want %q", rel, want)
	}
}
