// Package objectstore implements a content-addressed, persistent store of
// the four object kinds dits defines (chunk, asset, tree, commit). The
// in-memory existence cache is grounded on the LRU-backed dedup index in
// go-delta's internal/chunkstore (atomic counters, map-based fast path),
// generalized from a single chunk map to one cache per object kind and
// backed by real on-disk persistence rather than an in-process-only index.
package objectstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
)

// mmapReadThreshold is the on-disk object size above which Get reads via
// a memory mapping instead of os.ReadFile, avoiding a full buffered copy
// for cold, large objects (container payload chunks chief among them).
const mmapReadThreshold = 8 * 1024 * 1024

// Kind identifies one of the four object subspaces.
type Kind int

const (
	KindChunk Kind = iota
	KindAsset
	KindTree
	KindCommit
)

// String renders a Kind as its object-subspace directory name, for
// logging and CLI output.
func (k Kind) String() string { return k.dirName() }

func (k Kind) dirName() string {
	switch k {
	case KindChunk:
		return "chunks"
	case KindAsset:
		return "assets"
	case KindTree:
		return "trees"
	case KindCommit:
		return "commits"
	default:
		panic(fmt.Sprintf("objectstore: unknown kind %d", k))
	}
}

func (k Kind) domainTag() (byte, bool) {
	switch k {
	case KindAsset:
		return manifest.TagAsset, true
	case KindTree:
		return manifest.TagTree, true
	case KindCommit:
		return manifest.TagCommit, true
	default:
		// Chunks are hashed untagged: the chunk invariant is exactly
		// hash == BLAKE3(raw_bytes), so convergent dedup works for any two
		// producers of the same bytes regardless of object kind context.
		// See DESIGN.md for why assets/trees/commits use a domain tag and
		// chunks don't.
		return 0, false
	}
}

// one header byte in front of every stored object body.
const (
	flagRaw        byte = 0
	flagCompressed byte = 1
)

// Store is a handle to one repository's object store, rooted at a
// filesystem directory (conventionally <repo>/.dits/objects). It holds no
// process-wide state; every long-lived subsystem in dits is constructed
// explicitly from a root path.
type Store struct {
	root          string
	compressLevel int // 0 disables compression, 1..22 is a zstd level

	mu     sync.Mutex
	exists map[Kind]map[hashutil.Hash]struct{} // verified-or-written existence cache
	verify sync.Map                            // key: Kind,Hash -> verified bool (lazy per-process check)

	encoder *zstd.Encoder
	metrics *metrics
}

// Open returns a Store rooted at root, creating the per-kind subspaces if
// absent. compressLevel is the zstd level from core.compression (0..22);
// 0 disables compression.
func Open(root string, compressLevel int) (*Store, error) {
	for _, k := range []Kind{KindChunk, KindAsset, KindTree, KindCommit} {
		if err := os.MkdirAll(filepath.Join(root, k.dirName()), 0o755); err != nil {
			return nil, fmt.Errorf("objectstore: create subspace %s: %w", k.dirName(), err)
		}
	}

	var enc *zstd.Encoder
	if compressLevel > 0 {
		level := zstd.EncoderLevelFromZstd(compressLevel)
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, fmt.Errorf("objectstore: init zstd encoder: %w", err)
		}
	}

	s := &Store{
		root:          root,
		compressLevel: compressLevel,
		exists:        make(map[Kind]map[hashutil.Hash]struct{}),
		encoder:       enc,
		metrics:       newMetrics(),
	}
	for _, k := range []Kind{KindChunk, KindAsset, KindTree, KindCommit} {
		s.exists[k] = make(map[hashutil.Hash]struct{})
	}
	return s, nil
}

// Registry exposes the store's prometheus registry so a host process can
// mount it on an HTTP server; dits itself never starts one.
func (s *Store) Registry() *prometheus.Registry {
	return s.metrics.registry
}

// path returns the two-level fan-out path for an object:
// <kind>/<hex(H[0])>/<hex(H[1:])>.
func (s *Store) path(kind Kind, h hashutil.Hash) string {
	hex := h.String()
	return filepath.Join(s.root, kind.dirName(), hex[:2], hex[2:])
}

// hashFor computes the object hash for kind appropriately: chunks are
// hashed untagged over their raw bytes; asset/tree/commit canonical
// encodings are hashed with their domain-separation tag.
func (s *Store) hashFor(kind Kind, data []byte) hashutil.Hash {
	if tag, tagged := kind.domainTag(); tagged {
		return manifest.Hash(tag, data)
	}
	return hashutil.Bytes(data)
}

// Put stores data under kind, returning its content hash and whether this
// call wrote new bytes (false means the object already existed, i.e. a
// dedup hit). Put is idempotent: writing the same bytes again is a no-op
// after verifying the stored content matches.
func (s *Store) Put(kind Kind, data []byte) (hashutil.Hash, bool, error) {
	h := s.hashFor(kind, data)

	if s.has(kind, h) {
		// Verify the stored copy before treating the write as a no-op.
		if _, err := s.Get(kind, h); err != nil {
			return hashutil.Hash{}, false, err
		}
		s.metrics.putDedup.Inc()
		return h, false, nil
	}

	path := s.path(kind, h)
	if _, err := os.Stat(path); err == nil {
		s.markExists(kind, h)
		s.metrics.putDedup.Inc()
		return h, false, nil
	}

	if err := s.writeViaRename(path, data); err != nil {
		return hashutil.Hash{}, false, fmt.Errorf("objectstore: put %s/%s: %w", kind.dirName(), h, err)
	}
	s.markExists(kind, h)
	s.metrics.putNew.Inc()
	s.metrics.bytesStored.Add(float64(len(data)))
	return h, true, nil
}

// readObjectFile reads an object's on-disk bytes, switching to a memory
// mapping above mmapReadThreshold so a large cold object doesn't pay for a
// full buffered os.ReadFile copy.
func (s *Store) readObjectFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < mmapReadThreshold {
		return io.ReadAll(f)
	}

	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("objectstore: mmap %s: %w", path, err)
	}
	defer region.Unmap()

	out := make([]byte, len(region))
	copy(out, region)
	return out, nil
}

// writeViaRename is the crash-safe write protocol: write to a temp file in
// the same directory, fsync, rename. Concurrent writers computing
// identical bytes for the same hash race harmlessly; whichever rename
// lands last wins, and both wrote the same content by construction. This
// pattern generalizes go-delta's own os.CreateTemp-then-flush handling of
// its chunk-data temp file in pkg/compress/compress_chunked.go to a
// one-temp-file-per-object scheme.
func (s *Store) writeViaRename(finalPath string, data []byte) error {
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	body, flag := s.maybeCompress(data)
	if _, err := tmp.Write([]byte{flag}); err != nil {
		cleanup()
		return err
	}
	if _, err := tmp.Write(body); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		// Another writer may have already renamed an identical object into
		// place; that is success, not failure (idempotent put).
		if _, statErr := os.Stat(finalPath); statErr == nil {
			return nil
		}
		return err
	}
	return nil
}

// maybeCompress compresses data with zstd when net-beneficial. Compression
// is skipped when disabled or when it does not shrink the object.
func (s *Store) maybeCompress(data []byte) ([]byte, byte) {
	if s.encoder == nil {
		return data, flagRaw
	}
	compressed := s.encoder.EncodeAll(data, nil)
	if len(compressed) < len(data) {
		return compressed, flagCompressed
	}
	return data, flagRaw
}

// Get retrieves and verifies an object's bytes. The digest is checked
// lazily on first access per process and cached thereafter; on mismatch it
// returns a CorruptError.
func (s *Store) Get(kind Kind, h hashutil.Hash) ([]byte, error) {
	path := s.path(kind, h)
	raw, err := s.readObjectFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Kind: kind, Hash: h}
		}
		return nil, fmt.Errorf("objectstore: read %s/%s: %w", kind.dirName(), h, err)
	}
	if len(raw) == 0 {
		return nil, &CorruptError{Hash: h, Reason: "empty object file"}
	}

	flag, body := raw[0], raw[1:]
	var data []byte
	switch flag {
	case flagRaw:
		data = body
	case flagCompressed:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("objectstore: init zstd decoder: %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(body, nil)
		if err != nil {
			return nil, &CorruptError{Hash: h, Reason: "zstd decode failed: " + err.Error()}
		}
	default:
		return nil, &CorruptError{Hash: h, Reason: "unknown compression flag"}
	}

	key := verifyKey{kind, h}
	if _, verified := s.verify.Load(key); !verified {
		if s.hashFor(kind, data) != h {
			return nil, &CorruptError{Hash: h, Reason: "digest mismatch"}
		}
		s.verify.Store(key, true)
	}

	s.markExists(kind, h)
	return data, nil
}

// Has reports whether an object is present, without verifying its digest.
func (s *Store) Has(kind Kind, h hashutil.Hash) bool {
	return s.has(kind, h)
}

func (s *Store) has(kind Kind, h hashutil.Hash) bool {
	s.mu.Lock()
	_, ok := s.exists[kind][h]
	s.mu.Unlock()
	if ok {
		return true
	}
	if _, err := os.Stat(s.path(kind, h)); err == nil {
		s.markExists(kind, h)
		return true
	}
	return false
}

func (s *Store) markExists(kind Kind, h hashutil.Hash) {
	s.mu.Lock()
	s.exists[kind][h] = struct{}{}
	s.mu.Unlock()
}

// Iter returns every hash currently stored under kind, by walking the
// on-disk fan-out directories. The filesystem, not the in-memory cache, is
// the source of truth.
func (s *Store) Iter(kind Kind) ([]hashutil.Hash, error) {
	base := filepath.Join(s.root, kind.dirName())
	var out []hashutil.Hash
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("objectstore: list %s: %w", kind.dirName(), err)
	}
	for _, top := range entries {
		if !top.IsDir() {
			continue
		}
		subEntries, err := os.ReadDir(filepath.Join(base, top.Name()))
		if err != nil {
			return nil, fmt.Errorf("objectstore: list %s/%s: %w", kind.dirName(), top.Name(), err)
		}
		for _, sub := range subEntries {
			hexStr := top.Name() + sub.Name()
			h, err := hashutil.ParseHash(hexStr)
			if err != nil {
				continue // skip stray files (temp-file leftovers, etc.)
			}
			out = append(out, h)
		}
	}
	return out, nil
}

// Path exposes an object's on-disk path for callers (e.g. checkout's
// mmap path) that need direct filesystem access to a large object's bytes
// rather than an in-memory copy. The returned path's content is still the
// on-disk representation: one compression-flag byte followed by the body.
func (s *Store) Path(kind Kind, h hashutil.Hash) string {
	return s.path(kind, h)
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Delete removes an object unconditionally, for use by a mark-sweep
// collector that has already proven h unreachable. Deleting a missing
// object is not an error.
func (s *Store) Delete(kind Kind, h hashutil.Hash) error {
	path := s.path(kind, h)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objectstore: delete %s/%s: %w", kind.dirName(), h, err)
	}
	s.mu.Lock()
	delete(s.exists[kind], h)
	s.mu.Unlock()
	s.verify.Delete(verifyKey{kind, h})
	return nil
}

type verifyKey struct {
	kind Kind
	hash hashutil.Hash
}

var _ io.Closer = (*Store)(nil)

// Close releases the store's zstd encoder resources.
func (s *Store) Close() error {
	if s.encoder != nil {
		s.encoder.Close()
	}
	return nil
}
