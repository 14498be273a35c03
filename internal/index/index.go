// Package index implements the staging index that tracks working-set and
// staged entries between commits. The binary framing
// (header + length-prefixed entries, write-via-rename persistence) follows
// the same style as go-delta's internal/format archive records; the
// advisory single-writer lock is new here (go-delta has no concurrent
// writers to guard) and is grounded on bsc-erigon's use of
// github.com/gofrs/flock for its own datadir lock file.
package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/dits-vcs/dits/internal/hashutil"
)

// Stage slots: 0 is the normal staged entry; 1/2/3 are the merge
// base/ours/theirs slots for an unmerged path.
const (
	StageNormal = 0
	StageBase   = 1
	StageOurs   = 2
	StageTheirs = 3
)

// Entry is one staged path at one stage slot.
type Entry struct {
	Path      string
	AssetHash hashutil.Hash
	Mode      uint32
	Size      uint64
	ModTime   int64 // UnixNano, for change detection
	Inode     uint64
	Stage     uint8
}

func (e Entry) key() (string, uint8) { return e.Path, e.Stage }

// Index is the in-memory, always-sorted staging index.
type Index struct {
	entries []Entry
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

const indexVersion = uint32(1)

// Load reads an index file written by Save. A missing file is treated as
// an empty index (the initial state of a freshly init'd repo).
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("index: read %s: %w", path, err)
	}
	return decode(raw)
}

func decode(raw []byte) (*Index, error) {
	r := bytes.NewReader(raw)

	var version, count uint32
	var storedDigest hashutil.Hash
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: read version: %v", ErrCorrupt, err)
	}
	if version != indexVersion {
		return nil, fmt.Errorf("%w: unsupported index version %d", ErrCorrupt, version)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: read entry count: %v", ErrCorrupt, err)
	}
	if _, err := io.ReadFull(r, storedDigest[:]); err != nil {
		return nil, fmt.Errorf("%w: read stat digest: %v", ErrCorrupt, err)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read entries body: %v", ErrCorrupt, err)
	}
	if got := hashutil.Bytes(body); got != storedDigest {
		return nil, fmt.Errorf("%w: stat digest mismatch, index must be rebuilt", ErrCorrupt)
	}

	idx := &Index{entries: make([]Entry, 0, count)}
	br := bytes.NewReader(body)
	for i := uint32(0); i < count; i++ {
		e, err := decodeEntry(br)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, i, err)
		}
		idx.entries = append(idx.entries, e)
	}
	return idx, nil
}

func decodeEntry(r io.Reader) (Entry, error) {
	var e Entry
	var pathLen uint16
	if err := binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
		return e, err
	}
	pathBytes := make([]byte, pathLen)
	if _, err := io.ReadFull(r, pathBytes); err != nil {
		return e, err
	}
	e.Path = string(pathBytes)
	if _, err := io.ReadFull(r, e.AssetHash[:]); err != nil {
		return e, err
	}
	for _, field := range []*uint64{&e.Size} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return e, err
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &e.ModTime); err != nil {
		return e, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.Inode); err != nil {
		return e, err
	}
	if err := binary.Read(r, binary.LittleEndian, &e.Mode); err != nil {
		return e, err
	}
	stage, err := readByte(r)
	if err != nil {
		return e, err
	}
	e.Stage = stage
	return e, nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

func encodeEntry(w io.Writer, e Entry) {
	binary.Write(w, binary.LittleEndian, uint16(len(e.Path)))
	io.WriteString(w, e.Path)
	w.Write(e.AssetHash[:])
	binary.Write(w, binary.LittleEndian, e.Size)
	binary.Write(w, binary.LittleEndian, e.ModTime)
	binary.Write(w, binary.LittleEndian, e.Inode)
	binary.Write(w, binary.LittleEndian, e.Mode)
	w.Write([]byte{e.Stage})
}

// Save writes the index to path using write-via-rename: the write is
// all-or-nothing at the single-file granularity, so a crash mid-write never
// leaves a half-written index in place.
func Save(idx *Index, path string) error {
	var body bytes.Buffer
	for _, e := range idx.entries {
		encodeEntry(&body, e)
	}
	digest := hashutil.Bytes(body.Bytes())

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, indexVersion)
	binary.Write(&out, binary.LittleEndian, uint32(len(idx.entries)))
	out.Write(digest[:])
	out.Write(body.Bytes())

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("index: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "index-tmp-*")
	if err != nil {
		return fmt.Errorf("index: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(out.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("index: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("index: fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("index: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("index: rename: %w", err)
	}
	return nil
}

func (idx *Index) sort() {
	sort.Slice(idx.entries, func(i, j int) bool {
		pi, si := idx.entries[i].key()
		pj, sj := idx.entries[j].key()
		if pi != pj {
			return pi < pj
		}
		return si < sj
	})
}

// Stage upserts a normal (stage 0) entry for path and clears any unmerged
// entries at stages 1-3, resolving a conflict in the caller's favor.
func (idx *Index) Stage(e Entry) {
	e.Stage = StageNormal
	idx.removeAllStages(e.Path)
	idx.entries = append(idx.entries, e)
	idx.sort()
}

// StageConflict records base/ours/theirs entries for an unmerged path.
// No stage-0 entry exists for path while it is unmerged.
func (idx *Index) StageConflict(path string, base, ours, theirs *Entry) {
	idx.removeAllStages(path)
	for stage, e := range map[uint8]*Entry{StageBase: base, StageOurs: ours, StageTheirs: theirs} {
		if e == nil {
			continue
		}
		cp := *e
		cp.Path = path
		cp.Stage = stage
		idx.entries = append(idx.entries, cp)
	}
	idx.sort()
}

func (idx *Index) removeAllStages(path string) {
	out := idx.entries[:0]
	for _, e := range idx.entries {
		if e.Path != path {
			out = append(out, e)
		}
	}
	idx.entries = out
}

// Unstage removes the stage-0 entry for path, leaving any conflict stages
// untouched.
func (idx *Index) Unstage(path string) {
	out := idx.entries[:0]
	for _, e := range idx.entries {
		if e.Path == path && e.Stage == StageNormal {
			continue
		}
		out = append(out, e)
	}
	idx.entries = out
}

// Remove deletes every stage of path.
func (idx *Index) Remove(path string) {
	idx.removeAllStages(path)
}

// Get returns the stage-0 entry for path, if any.
func (idx *Index) Get(path string) (Entry, bool) {
	for _, e := range idx.entries {
		if e.Path == path && e.Stage == StageNormal {
			return e, true
		}
	}
	return Entry{}, false
}

// Unmerged returns the set of paths that have entries at stages >0 and
// none at stage 0.
func (idx *Index) Unmerged() map[string][3]*Entry {
	byPath := map[string][3]*Entry{}
	hasNormal := map[string]bool{}
	for i := range idx.entries {
		e := &idx.entries[i]
		if e.Stage == StageNormal {
			hasNormal[e.Path] = true
			continue
		}
		slots := byPath[e.Path]
		slots[e.Stage-1] = e
		byPath[e.Path] = slots
	}
	for p := range hasNormal {
		delete(byPath, p)
	}
	return byPath
}

// Entries returns all stage-0 entries, sorted by path.
func (idx *Index) Entries() []Entry {
	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		if e.Stage == StageNormal {
			out = append(out, e)
		}
	}
	return out
}

// Lock acquires the advisory per-process index lock at lockPath, retrying
// until timeout. The returned handle's Unlock must run on every exit path
// (success, failure, cancellation) — expressed here as an explicit handle
// rather than a defer baked into the package, so callers control the scope.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock blocks (up to timeout) trying to take the exclusive lock.
func AcquireLock(lockPath string, timeout time.Duration) (*Lock, error) {
	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(timeoutContext(timeout), 25*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("index: acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return &Lock{fl: fl}, nil
}

// Unlock releases the lock. Safe to call once; idempotent calls are a bug
// in the caller but do not panic.
func (l *Lock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
