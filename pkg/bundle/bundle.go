// Package bundle implements a single-file, xz-compressed export/import
// format for transferring a ref's reachable object graph between
// repositories without a network transport. It reuses pkg/integrity's
// graph walk to decide what belongs in the archive and go-delta's own
// tar-inside-xz container shape (pkg/compress/compress_xz.go,
// pkg/decompress/decompress_xz.go), narrowed from many files per worker
// down to one stream: every object becomes a tar entry named
// "<kind>/<hash>", and the archive's header entry records the ref name
// and the hash it pointed at.
package bundle

import (
	"archive/tar"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/dits-vcs/dits/internal/hashutil"
	"github.com/dits-vcs/dits/internal/objectstore"
	"github.com/dits-vcs/dits/pkg/integrity"
)

// headerEntryName is the reserved tar entry carrying the bundle's
// metadata (the ref name and head commit hash) ahead of any object
// entries.
const headerEntryName = "BUNDLE_HEAD"

func kindDir(k objectstore.Kind) string {
	switch k {
	case objectstore.KindChunk:
		return "chunks"
	case objectstore.KindAsset:
		return "assets"
	case objectstore.KindTree:
		return "trees"
	case objectstore.KindCommit:
		return "commits"
	default:
		panic(fmt.Sprintf("bundle: unknown kind %d", k))
	}
}

func kindFromDir(dir string) (objectstore.Kind, bool) {
	switch dir {
	case "chunks":
		return objectstore.KindChunk, true
	case "assets":
		return objectstore.KindAsset, true
	case "trees":
		return objectstore.KindTree, true
	case "commits":
		return objectstore.KindCommit, true
	default:
		return 0, false
	}
}

// Export writes an xz-compressed tar stream to w containing every object
// reachable from head (commit, trees, assets, chunks), preceded by a
// header entry recording refName and head. The bundle carries raw
// object bytes as objectstore.Store.Get returns them: decompressed and
// already digest-verified.
// progress, if non-empty, is called once per object written (Export) or
// replayed (Import) for callers that want to drive a progress indicator.
// Only the first callback is used; it is variadic so existing call sites
// compile unchanged.
func Export(store *objectstore.Store, refName string, head hashutil.Hash, w io.Writer, progress ...func(objectstore.Kind, hashutil.Hash)) error {
	var onObject func(objectstore.Kind, hashutil.Hash)
	if len(progress) > 0 {
		onObject = progress[0]
	}

	xzw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("bundle: create xz writer: %w", err)
	}
	tw := tar.NewWriter(xzw)

	headerBody := []byte(refName + "\n" + head.String() + "\n")
	if err := tw.WriteHeader(&tar.Header{
		Name: headerEntryName,
		Mode: 0o644,
		Size: int64(len(headerBody)),
	}); err != nil {
		return fmt.Errorf("bundle: write header entry: %w", err)
	}
	if _, err := tw.Write(headerBody); err != nil {
		return fmt.Errorf("bundle: write header body: %w", err)
	}

	written := map[string]bool{}
	err = integrity.WalkCommit(store, head, func(obj integrity.GraphObject) error {
		name := kindDir(obj.Kind) + "/" + obj.Hash.String()
		if written[name] {
			return nil
		}
		written[name] = true

		raw, err := store.Get(obj.Kind, obj.Hash)
		if err != nil {
			return fmt.Errorf("bundle: load %s: %w", name, err)
		}
		if err := tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(raw)),
		}); err != nil {
			return fmt.Errorf("bundle: write tar header for %s: %w", name, err)
		}
		if _, err := tw.Write(raw); err != nil {
			return fmt.Errorf("bundle: write tar body for %s: %w", name, err)
		}
		if onObject != nil {
			onObject(obj.Kind, obj.Hash)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("bundle: close tar writer: %w", err)
	}
	if err := xzw.Close(); err != nil {
		return fmt.Errorf("bundle: close xz writer: %w", err)
	}
	return nil
}

// Result summarizes what Import wrote into the local store.
type Result struct {
	RefName      string
	Head         hashutil.Hash
	ObjectsTotal int
	ObjectsNew   int
}

// Import reads an xz-compressed tar stream produced by Export, replaying
// every object entry into store via Put (so local dedup still applies),
// and returns the bundle's recorded ref name and head commit for the
// caller to point a local ref at.
func Import(store *objectstore.Store, r io.Reader, progress ...func(objectstore.Kind, hashutil.Hash)) (Result, error) {
	var onObject func(objectstore.Kind, hashutil.Hash)
	if len(progress) > 0 {
		onObject = progress[0]
	}

	xzr, err := xz.NewReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("bundle: create xz reader: %w", err)
	}
	tr := tar.NewReader(xzr)

	var result Result
	headerSeen := false

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("bundle: read tar header: %w", err)
		}

		body, err := io.ReadAll(tr)
		if err != nil {
			return Result{}, fmt.Errorf("bundle: read tar body for %s: %w", hdr.Name, err)
		}

		if hdr.Name == headerEntryName {
			refName, head, err := parseHeaderEntry(body)
			if err != nil {
				return Result{}, err
			}
			result.RefName = refName
			result.Head = head
			headerSeen = true
			continue
		}

		kind, hash, err := parseObjectEntryName(hdr.Name)
		if err != nil {
			return Result{}, err
		}

		writtenHash, isNew, err := store.Put(kind, body)
		if err != nil {
			return Result{}, fmt.Errorf("bundle: store %s: %w", hdr.Name, err)
		}
		if writtenHash != hash {
			return Result{}, fmt.Errorf("bundle: entry %s re-hashed to %s, archive is corrupt", hdr.Name, writtenHash)
		}
		result.ObjectsTotal++
		if isNew {
			result.ObjectsNew++
		}
		if onObject != nil {
			onObject(kind, hash)
		}
	}

	if !headerSeen {
		return Result{}, fmt.Errorf("bundle: archive has no %s entry", headerEntryName)
	}
	return result, nil
}

func parseObjectEntryName(name string) (objectstore.Kind, hashutil.Hash, error) {
	slash := -1
	for i, c := range name {
		if c == '/' {
			slash = i
			break
		}
	}
	if slash < 0 {
		return 0, hashutil.Hash{}, fmt.Errorf("bundle: malformed entry name %q", name)
	}
	kind, ok := kindFromDir(name[:slash])
	if !ok {
		return 0, hashutil.Hash{}, fmt.Errorf("bundle: unknown object kind in entry %q", name)
	}
	h, err := hashutil.ParseHash(name[slash+1:])
	if err != nil {
		return 0, hashutil.Hash{}, fmt.Errorf("bundle: malformed hash in entry %q: %w", name, err)
	}
	return kind, h, nil
}

func parseHeaderEntry(body []byte) (string, hashutil.Hash, error) {
	lines := splitLines(body)
	if len(lines) < 2 {
		return "", hashutil.Hash{}, fmt.Errorf("bundle: malformed %s entry", headerEntryName)
	}
	h, err := hashutil.ParseHash(lines[1])
	if err != nil {
		return "", hashutil.Hash{}, fmt.Errorf("bundle: malformed head hash in %s: %w", headerEntryName, err)
	}
	return lines[0], h, nil
}

func splitLines(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	return out
}
