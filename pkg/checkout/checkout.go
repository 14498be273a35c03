// Package checkout reconstructs working-tree files from dits asset
// manifests: stream chunks back in order, re-insert any elided container
// metadata, and fail loudly (deleting the partial output) on the first
// hash mismatch rather than leaving a silently corrupt file behind.
package checkout

import (
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/dits-vcs/dits/internal/container"
	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
)

// DefaultBigFileThreshold is the size at or above which File switches from a
// buffered sequential write to a memory-mapped random-access write, which
// lets the chunk loop issue writes out of order without extra buffering.
const DefaultBigFileThreshold = 512 * 1024 * 1024

// CorruptChunkError is returned when a stored chunk's length differs from
// the one recorded in the asset manifest, or when VerifyContentHash finds
// the rebuilt file's hash differs from the manifest's content hash. A chunk
// whose bytes fail their own digest check surfaces as the store's load error.
type CorruptChunkError struct {
	Path string
	Hash hashutil.Hash
}

func (e *CorruptChunkError) Error() string {
	return fmt.Sprintf("checkout: chunk %s for %s failed verification", e.Hash, e.Path)
}

// File reconstructs asset into destPath. On any error the partially
// written file is removed; destPath never holds a half-written result.
func File(store *objectstore.Store, asset *manifest.Asset, destPath string, bigFileThreshold uint64) (err error) {
	if bigFileThreshold == 0 {
		bigFileThreshold = DefaultBigFileThreshold
	}

	f, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("checkout: create %s: %w", destPath, err)
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(destPath)
		}
	}()

	if asset.Size >= bigFileThreshold {
		err = writeMapped(store, asset, f, destPath)
	} else {
		err = writeSequential(store, asset, f, destPath)
	}
	return err
}

func writeSequential(store *objectstore.Store, asset *manifest.Asset, f *os.File, destPath string) error {
	payload := newChunkReader(store, asset, destPath)
	defer payload.Close()

	if asset.ContentKind == manifest.KindISOBMFF && asset.ContainerMetadata != nil {
		metadata, err := store.Get(objectstore.KindChunk, asset.ContainerMetadata.Hash)
		if err != nil {
			return fmt.Errorf("checkout: load container metadata: %w", err)
		}
		return container.Reassemble(f, payload, asset.ContainerMetadata.OriginalOffset, metadata)
	}

	if _, err := io.Copy(f, payload); err != nil {
		return err
	}
	return payload.err
}

func writeMapped(store *objectstore.Store, asset *manifest.Asset, f *os.File, destPath string) error {
	if err := f.Truncate(int64(asset.Size)); err != nil {
		return fmt.Errorf("checkout: truncate %s: %w", destPath, err)
	}
	if asset.Size == 0 {
		return nil
	}
	region, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("checkout: mmap %s: %w", destPath, err)
	}
	defer region.Unmap()

	if asset.ContentKind == manifest.KindISOBMFF && asset.ContainerMetadata != nil {
		return writeMappedContainer(store, asset, region, destPath)
	}

	for _, c := range asset.Chunks {
		data, err := store.Get(objectstore.KindChunk, c.Hash)
		if err != nil {
			return fmt.Errorf("checkout: load chunk for %s: %w", destPath, err)
		}
		if uint64(len(data)) != uint64(c.Length) {
			return &CorruptChunkError{Path: destPath, Hash: c.Hash}
		}
		copy(region[c.Offset:c.Offset+uint64(len(data))], data)
	}
	return region.Flush()
}

// writeMappedContainer maps the full-size destination, writes the pre-moov
// and post-moov chunk ranges directly at their final offsets (which sit
// past the elided moov box), then writes the metadata into the gap.
func writeMappedContainer(store *objectstore.Store, asset *manifest.Asset, region mmap.MMap, destPath string) error {
	meta := asset.ContainerMetadata
	metaBytes, err := store.Get(objectstore.KindChunk, meta.Hash)
	if err != nil {
		return fmt.Errorf("checkout: load container metadata: %w", err)
	}

	for _, c := range asset.Chunks {
		data, err := store.Get(objectstore.KindChunk, c.Hash)
		if err != nil {
			return fmt.Errorf("checkout: load chunk for %s: %w", destPath, err)
		}
		if uint64(len(data)) != uint64(c.Length) {
			return &CorruptChunkError{Path: destPath, Hash: c.Hash}
		}
		finalOffset := c.Offset
		if c.Offset >= meta.OriginalOffset {
			finalOffset += uint64(len(metaBytes))
		}
		copy(region[finalOffset:finalOffset+uint64(len(data))], data)
	}
	copy(region[meta.OriginalOffset:meta.OriginalOffset+uint64(len(metaBytes))], metaBytes)
	return region.Flush()
}

// chunkReader streams an asset's chunks in order as a single io.Reader,
// verifying each chunk's length against its manifest entry.
type chunkReader struct {
	store    *objectstore.Store
	asset    *manifest.Asset
	destPath string
	idx      int
	buf      []byte
	err      error
}

func newChunkReader(store *objectstore.Store, asset *manifest.Asset, destPath string) *chunkReader {
	return &chunkReader{store: store, asset: asset, destPath: destPath}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.idx >= len(r.asset.Chunks) {
			return 0, io.EOF
		}
		c := r.asset.Chunks[r.idx]
		r.idx++
		data, err := r.store.Get(objectstore.KindChunk, c.Hash)
		if err != nil {
			r.err = fmt.Errorf("checkout: load chunk for %s: %w", r.destPath, err)
			return 0, r.err
		}
		if uint64(len(data)) != uint64(c.Length) {
			r.err = &CorruptChunkError{Path: r.destPath, Hash: c.Hash}
			return 0, r.err
		}
		r.buf = data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

// VerifyContentHash re-derives the whole-file content hash from the
// already-reconstructed file at path and compares it to asset.ContentHash.
func VerifyContentHash(path string, asset *manifest.Asset) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("checkout: reopen %s for verification: %w", path, err)
	}
	defer f.Close()
	got, err := hashutil.Stream(f)
	if err != nil {
		return fmt.Errorf("checkout: hash %s: %w", path, err)
	}
	if got != asset.ContentHash {
		return &CorruptChunkError{Path: path, Hash: asset.ContentHash}
	}
	return nil
}
