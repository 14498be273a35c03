// Package ingest implements the pipeline that turns working-tree files
// into stored chunk/asset objects: walk, classify, optionally split
// ISOBMFF containers, chunk, hash, and write to the object store. The
// bounded worker pool is grounded on go-delta's own folderCh/WaitGroup
// pipeline in pkg/compress/compress_chunked.go, rebuilt on top of
// golang.org/x/sync/errgroup the way the wider retrieved dependency
// corpus uses it for bounded fan-out (e.g. a hyperpack-style packer's
// producer/consumer chunk channel).
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dits-vcs/dits/internal/chunker"
	"github.com/dits-vcs/dits/internal/container"
	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/manifest"
	"github.com/dits-vcs/dits/internal/objectstore"
)

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Path       string
	AssetHash  hashutil.Hash
	Size       uint64
	ChunkCount int
	NewChunks  int
}

// Event is emitted during a tree ingest for progress reporting.
type Event struct {
	Path    string
	Size    int64
	Done    bool
	Err     error
}

// Walk returns every regular file under baseDir, relative to baseDir with
// forward slashes, skipping .dits and anything matched by a .ditsignore.
func Walk(baseDir string) ([]string, error) {
	m, err := newMatcher(baseDir)
	if err != nil {
		return nil, fmt.Errorf("ingest: scan ignore files: %w", err)
	}

	var out []string
	err = filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(baseDir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".dits" {
				return filepath.SkipDir
			}
			if m.shouldIgnore(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if m.shouldIgnore(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// File ingests a single file at absPath into store, producing its asset
// manifest and content hash.
func File(store *objectstore.Store, absPath string, params chunker.Params) (*manifest.Asset, FileResult, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, FileResult{}, fmt.Errorf("ingest: stat %s: %w", absPath, err)
	}

	kind, err := classify(absPath, info.Size())
	if err != nil {
		return nil, FileResult{}, fmt.Errorf("ingest: classify %s: %w", absPath, err)
	}

	asset := &manifest.Asset{Size: uint64(info.Size()), ContentKind: kind}
	var payloadSource func() (io.Reader, func(), error)

	if kind == manifest.KindISOBMFF {
		f, err := os.Open(absPath)
		if err != nil {
			return nil, FileResult{}, fmt.Errorf("ingest: open %s: %w", absPath, err)
		}
		split, analyzeErr := container.Analyze(f)
		switch {
		case analyzeErr != nil && container.IsOpaqueFallback(analyzeErr):
			f.Close()
			asset.ContentKind = manifest.KindOpaque
		case analyzeErr != nil:
			f.Close()
			return nil, FileResult{}, fmt.Errorf("ingest: analyze %s: %w", absPath, analyzeErr)
		default:
			metaHash, _, err := store.Put(objectstore.KindChunk, split.Metadata)
			if err != nil {
				f.Close()
				return nil, FileResult{}, fmt.Errorf("ingest: store container metadata: %w", err)
			}
			asset.ContainerMetadata = &manifest.ContainerMetadata{Hash: metaHash, OriginalOffset: split.MetadataOffset}
			payloadSource = func() (io.Reader, func(), error) {
				r, err := split.PayloadReader(f)
				return r, func() { f.Close() }, err
			}
		}
	}

	if payloadSource == nil {
		payloadSource = func() (io.Reader, func(), error) {
			f, err := os.Open(absPath)
			if err != nil {
				return nil, func() {}, err
			}
			return f, func() { f.Close() }, nil
		}
	}

	payload, closeFn, err := payloadSource()
	if err != nil {
		return nil, FileResult{}, fmt.Errorf("ingest: open payload %s: %w", absPath, err)
	}
	defer closeFn()

	contentHasher := hashutil.New()
	teed := io.TeeReader(payload, contentHasher)

	ck, err := chunker.New(teed, params)
	if err != nil {
		return nil, FileResult{}, fmt.Errorf("ingest: new chunker: %w", err)
	}

	var result FileResult
	result.Path = absPath
	for {
		rng, err := ck.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, FileResult{}, fmt.Errorf("ingest: chunk %s: %w", absPath, err)
		}
		h, isNew, err := store.Put(objectstore.KindChunk, rng.Data)
		if err != nil {
			return nil, FileResult{}, fmt.Errorf("ingest: store chunk %s: %w", absPath, err)
		}
		asset.Chunks = append(asset.Chunks, manifest.ChunkRef{Hash: h, Offset: rng.Offset, Length: uint32(len(rng.Data))})
		result.ChunkCount++
		if isNew {
			result.NewChunks++
		}
	}
	asset.ContentHash = contentHasher.Finalize()
	result.Size = asset.Size

	assetHash, _, err := store.Put(objectstore.KindAsset, asset.Encode())
	if err != nil {
		return nil, FileResult{}, fmt.Errorf("ingest: store asset %s: %w", absPath, err)
	}
	result.AssetHash = assetHash

	return asset, result, nil
}

// Tree ingests every path Walk returns under baseDir, bounded by
// concurrency workers, invoking progress for each file as it completes.
func Tree(ctx context.Context, store *objectstore.Store, baseDir string, params chunker.Params, concurrency int, paths []string, progress func(Event)) (map[string]FileResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make(map[string]FileResult, len(paths))
	resultsCh := make(chan struct {
		rel string
		res FileResult
		err error
	}, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	pathCh := make(chan string)

	g.Go(func() error {
		defer close(pathCh)
		for _, p := range paths {
			select {
			case pathCh <- p:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			for rel := range pathCh {
				abs := filepath.Join(baseDir, filepath.FromSlash(rel))
				_, res, err := File(store, abs, params)
				if progress != nil {
					size := int64(0)
					if err == nil {
						size = int64(res.Size)
					}
					progress(Event{Path: rel, Size: size, Done: err == nil, Err: err})
				}
				resultsCh <- struct {
					rel string
					res FileResult
					err error
				}{rel, res, err}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	close(resultsCh)
	for item := range resultsCh {
		if item.err == nil {
			results[item.rel] = item.res
		}
	}
	if err != nil {
		return results, err
	}
	return results, nil
}
