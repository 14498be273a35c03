package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dits-vcs/dits/internal/hashutil"
)

func walkAll(dir string) func(string) ([]string, error) {
	return func(root string) ([]string, error) {
		var out []string
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				out = append(out, e.Name())
			}
		}
		return out, nil
	}
}

func TestDiffWorktreeMatchesUnmodifiedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("lstat: %v", err)
	}

	idx := New()
	idx.Stage(Entry{
		Path:      "a.txt",
		AssetHash: hashutil.Bytes([]byte("hello")),
		Size:      uint64(info.Size()),
		ModTime:   info.ModTime().UnixNano(),
		Inode:     StatInode(info),
	})

	diff, err := DiffWorktree(idx, dir, walkAll(dir))
	if err != nil {
		t.Fatalf("DiffWorktree: %v", err)
	}
	if len(diff.Unmodified) != 1 || diff.Unmodified[0] != "a.txt" {
		t.Fatalf("expected a.txt unmodified, got %+v", diff)
	}
	if len(diff.Modified) != 0 {
		t.Fatalf("expected no modified paths, got %+v", diff.Modified)
	}
}

// TestDiffWorktreeDetectsInodeChangeWithIdenticalSizeAndModTime reproduces
// a cp -p-style restore: the file at a tracked path is replaced by a
// different file (different inode) that happens to carry the exact same
// size and mtime as the one the index recorded. Comparing only (size,
// mtime) would call this unmodified; the inode must catch it.
func TestDiffWorktreeDetectsInodeChangeWithIdenticalSizeAndModTime(t *testing.T) {
	if StatInode(mustLstat(t, writeTempFile(t, t.TempDir(), "probe", []byte("x")))) == 0 {
		t.Skip("platform has no usable inode numbers (StatInode always 0)")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write original: %v", err)
	}
	origInfo, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("lstat original: %v", err)
	}
	origInode := StatInode(origInfo)

	// Write a same-length replacement elsewhere, force its mtime to match
	// the original exactly, then swap it into place. The rename gives the
	// path a new inode while preserving size and mtime.
	replacement := filepath.Join(dir, "a.txt.new")
	if err := os.WriteFile(replacement, []byte("HELLO"), 0o644); err != nil {
		t.Fatalf("write replacement: %v", err)
	}
	mtime := origInfo.ModTime()
	if err := os.Chtimes(replacement, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Rename(replacement, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	newInfo, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("lstat replacement: %v", err)
	}
	if StatInode(newInfo) == origInode {
		t.Skip("filesystem reused the same inode for the replacement; cannot exercise the divergent case")
	}
	if newInfo.Size() != origInfo.Size() || newInfo.ModTime() != origInfo.ModTime() {
		t.Fatalf("test setup failed to keep size/mtime identical: orig=%+v new=%+v", origInfo, newInfo)
	}

	idx := New()
	idx.Stage(Entry{
		Path:      "a.txt",
		AssetHash: hashutil.Bytes([]byte("hello")),
		Size:      uint64(origInfo.Size()),
		ModTime:   origInfo.ModTime().UnixNano(),
		Inode:     origInode,
	})

	diff, err := DiffWorktree(idx, dir, walkAll(dir))
	if err != nil {
		t.Fatalf("DiffWorktree: %v", err)
	}
	if len(diff.Modified) != 1 || diff.Modified[0] != "a.txt" {
		t.Fatalf("expected a.txt reported modified via inode mismatch, got %+v", diff)
	}
}

func writeTempFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func mustLstat(t *testing.T, path string) os.FileInfo {
	t.Helper()
	info, err := os.Lstat(path)
	if err != nil {
		t.Fatalf("lstat %s: %v", path, err)
	}
	return info
}
