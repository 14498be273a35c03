package checkout

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dits-vcs/dits/internal/chunker"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/pkg/ingest"
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

func TestFileRoundTripsTextContent(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.txt")
	content := make([]byte, 300*1024)
	for i := range content {
		content[i] = byte('a' + i%26)
	}
	if err := os.WriteFile(srcPath, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	asset, _, err := ingest.File(store, srcPath, chunker.DefaultParams())
	if err != nil {
		t.Fatalf("ingest.File: %v", err)
	}

	destPath := filepath.Join(dir, "out.txt")
	if err := File(store, asset, destPath, DefaultBigFileThreshold); err != nil {
		t.Fatalf("File: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("read reconstructed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("reconstructed content does not match original")
	}
	if err := VerifyContentHash(destPath, asset); err != nil {
		t.Fatalf("VerifyContentHash: %v", err)
	}
}

func TestFileRoundTripsViaMmapPath(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.txt")
	content := make([]byte, 300*1024)
	for i := range content {
		content[i] = byte((i * 7) % 251)
	}
	if err := os.WriteFile(srcPath, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	asset, _, err := ingest.File(store, srcPath, chunker.DefaultParams())
	if err != nil {
		t.Fatalf("ingest.File: %v", err)
	}

	destPath := filepath.Join(dir, "out.txt")
	// Force the mmap-backed path by setting the threshold below the
	// fixture size.
	if err := File(store, asset, destPath, 1); err != nil {
		t.Fatalf("File: %v", err)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("read reconstructed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("reconstructed content does not match original via mmap path")
	}
}

func TestFileDetectsCorruptChunkAndRemovesPartialOutput(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(srcPath, []byte("some test content for corruption handling"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	asset, _, err := ingest.File(store, srcPath, chunker.DefaultParams())
	if err != nil {
		t.Fatalf("ingest.File: %v", err)
	}
	if len(asset.Chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	// Corrupt the on-disk chunk object directly.
	badHash := asset.Chunks[0].Hash
	objPath := store.Path(objectstore.KindChunk, badHash)
	raw, err := os.ReadFile(objPath)
	if err != nil {
		t.Fatalf("read object: %v", err)
	}
	raw[len(raw)-1] ^= 0xFF
	if err := os.WriteFile(objPath, raw, 0o644); err != nil {
		t.Fatalf("rewrite object: %v", err)
	}

	destPath := filepath.Join(dir, "out.txt")
	err = File(store, asset, destPath, DefaultBigFileThreshold)
	if err == nil {
		t.Fatal("expected corruption to surface as an error")
	}
	if _, statErr := os.Stat(destPath); !os.IsNotExist(statErr) {
		t.Fatal("expected partial output to be removed on failure")
	}
}
