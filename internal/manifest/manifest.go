// Package manifest implements the canonical, hashable serialization of
// dits' assets, trees and commits. The framing style (fixed-width
// little-endian integers, length-prefixed variable fields)
// is lifted directly from go-delta's internal/format package
// (WriteFileEntry/WriteChunkIndex/WriteFileMetadata), generalized from
// go-delta's flat archive records to dits' three object shapes.
package manifest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/dits-vcs/dits/internal/hashutil"
)

// Domain-separation tags prepended before hashing, so a tree and a commit
// with coincidentally equal bodies cannot collide.
const (
	TagChunk  = 'C'
	TagAsset  = 'A'
	TagTree   = 'T'
	TagCommit = 'K'
)

// Hash returns the content hash of a canonical serialization, domain
// separated by tag.
func Hash(tag byte, canonical []byte) hashutil.Hash {
	h := hashutil.New()
	h.Write([]byte{tag})
	h.Write(canonical)
	return h.Finalize()
}

// ContentKind classifies an asset's payload for diff-selection purposes.
// It never affects storage layout.
type ContentKind uint8

const (
	KindOpaque ContentKind = iota
	KindISOBMFF
	KindText
)

// ChunkRef is one ordered chunk reference inside an asset manifest.
type ChunkRef struct {
	Hash   hashutil.Hash
	Offset uint64
	Length uint32
}

// ContainerMetadata records the moov box extracted by the container
// splitter, present only for ContentKind == KindISOBMFF.
type ContainerMetadata struct {
	Hash           hashutil.Hash // hash of the metadata blob object
	OriginalOffset uint64
}

// Asset is the canonical, in-memory form of a file manifest.
type Asset struct {
	Size              uint64
	Chunks            []ChunkRef
	ContentKind       ContentKind
	ContainerMetadata *ContainerMetadata
	// ContentHash is the BLAKE3 digest of the reconstructed file, carried
	// inside the manifest so reconstruction integrity is independently
	// checkable without re-deriving the asset's own hash.
	ContentHash hashutil.Hash
}

const assetVersion = uint16(1)

// Encode produces the canonical byte serialization of a:
//
//	version:u16, size:u64, content_kind:u8, chunk_count:u32,
//	chunks:[{hash:32, offset:u64, length:u32}],
//	container_metadata_present:u8, [container_metadata],
//	content_hash:32
func (a *Asset) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, assetVersion)
	binary.Write(&buf, binary.LittleEndian, a.Size)
	buf.WriteByte(byte(a.ContentKind))
	binary.Write(&buf, binary.LittleEndian, uint32(len(a.Chunks)))
	for _, c := range a.Chunks {
		buf.Write(c.Hash[:])
		binary.Write(&buf, binary.LittleEndian, c.Offset)
		binary.Write(&buf, binary.LittleEndian, c.Length)
	}
	if a.ContainerMetadata != nil {
		buf.WriteByte(1)
		buf.Write(a.ContainerMetadata.Hash[:])
		binary.Write(&buf, binary.LittleEndian, a.ContainerMetadata.OriginalOffset)
	} else {
		buf.WriteByte(0)
	}
	buf.Write(a.ContentHash[:])
	return buf.Bytes()
}

// DecodeAsset parses a canonical asset serialization.
func DecodeAsset(b []byte) (*Asset, error) {
	r := bytes.NewReader(b)
	a := &Asset{}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("manifest: read asset version: %w", err)
	}
	if version != assetVersion {
		return nil, fmt.Errorf("%w: asset version %d", ErrInvalidFormat, version)
	}
	if err := binary.Read(r, binary.LittleEndian, &a.Size); err != nil {
		return nil, fmt.Errorf("manifest: read asset size: %w", err)
	}
	kind, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("manifest: read content kind: %w", err)
	}
	a.ContentKind = ContentKind(kind)

	var chunkCount uint32
	if err := binary.Read(r, binary.LittleEndian, &chunkCount); err != nil {
		return nil, fmt.Errorf("manifest: read chunk count: %w", err)
	}
	a.Chunks = make([]ChunkRef, chunkCount)
	for i := range a.Chunks {
		if _, err := io.ReadFull(r, a.Chunks[i].Hash[:]); err != nil {
			return nil, fmt.Errorf("manifest: read chunk hash %d: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &a.Chunks[i].Offset); err != nil {
			return nil, fmt.Errorf("manifest: read chunk offset %d: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &a.Chunks[i].Length); err != nil {
			return nil, fmt.Errorf("manifest: read chunk length %d: %w", i, err)
		}
	}

	present, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("manifest: read container-metadata flag: %w", err)
	}
	if present == 1 {
		cm := &ContainerMetadata{}
		if _, err := io.ReadFull(r, cm.Hash[:]); err != nil {
			return nil, fmt.Errorf("manifest: read container metadata hash: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &cm.OriginalOffset); err != nil {
			return nil, fmt.Errorf("manifest: read container metadata offset: %w", err)
		}
		a.ContainerMetadata = cm
	}

	if _, err := io.ReadFull(r, a.ContentHash[:]); err != nil {
		return nil, fmt.Errorf("manifest: read content hash: %w", err)
	}

	return a, nil
}

// EntryKind distinguishes tree entries pointing at a sub-tree from ones
// pointing at an asset.
type EntryKind uint8

const (
	EntryTree EntryKind = iota
	EntryAsset
)

// TreeEntry is one named child of a Tree.
type TreeEntry struct {
	Name string
	Kind EntryKind
	Hash hashutil.Hash
	Mode uint32
}

// Tree is the canonical, in-memory form of a directory manifest.
type Tree struct {
	Entries []TreeEntry
}

// Sort orders entries by name ascending, the required tree invariant.
// Callers must call this (or construct already-sorted) before
// Encode; Encode does not re-sort so that a caller can detect a violated
// invariant via DuplicateOrUnsorted.
func (t *Tree) Sort() {
	sort.Slice(t.Entries, func(i, j int) bool {
		return t.Entries[i].Name < t.Entries[j].Name
	})
}

// DuplicateOrUnsorted reports the first name that violates the sorted,
// duplicate-free invariant, or ("", false) if the tree is well-formed.
func (t *Tree) DuplicateOrUnsorted() (string, bool) {
	for i := 1; i < len(t.Entries); i++ {
		if t.Entries[i-1].Name >= t.Entries[i].Name {
			return t.Entries[i].Name, true
		}
	}
	return "", false
}

// Encode produces the canonical serialization of t:
//
//	entry_count:u32, then for each entry:
//	  mode:u32, name_len:u16, name:bytes, kind:u8 (0=tree,1=asset), hash:32
func (t *Tree) Encode() []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(t.Entries)))
	for _, e := range t.Entries {
		binary.Write(&buf, binary.LittleEndian, e.Mode)
		binary.Write(&buf, binary.LittleEndian, uint16(len(e.Name)))
		buf.WriteString(e.Name)
		buf.WriteByte(byte(e.Kind))
		buf.Write(e.Hash[:])
	}
	return buf.Bytes()
}

// DecodeTree parses a canonical tree serialization.
func DecodeTree(b []byte) (*Tree, error) {
	r := bytes.NewReader(b)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("manifest: read entry count: %w", err)
	}
	t := &Tree{Entries: make([]TreeEntry, count)}
	for i := range t.Entries {
		e := &t.Entries[i]
		if err := binary.Read(r, binary.LittleEndian, &e.Mode); err != nil {
			return nil, fmt.Errorf("manifest: read mode %d: %w", i, err)
		}
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, fmt.Errorf("manifest: read name length %d: %w", i, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("manifest: read name %d: %w", i, err)
		}
		e.Name = string(name)
		kind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("manifest: read kind %d: %w", i, err)
		}
		e.Kind = EntryKind(kind)
		if _, err := io.ReadFull(r, e.Hash[:]); err != nil {
			return nil, fmt.Errorf("manifest: read hash %d: %w", i, err)
		}
	}
	if name, bad := t.DuplicateOrUnsorted(); bad {
		return nil, fmt.Errorf("%w: tree entry %q out of order or duplicated", ErrInvalidFormat, name)
	}
	return t, nil
}

// Commit is the canonical, in-memory form of a commit object.
type Commit struct {
	TreeHash   hashutil.Hash
	Parents    []hashutil.Hash
	Generation uint64 // 0 for a root commit, max(parent.Generation)+1 otherwise
	Author     string
	Committer  string
	TimestampN int64 // UTC nanoseconds
	Message    string
	Signature  []byte // optional, PGP-armored or detached signature bytes
}

// Encode produces the canonical serialization of c: framed key:value
// lines, a blank line, then the message bytes to EOF.
func (c *Commit) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash.String())
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p.String())
	}
	fmt.Fprintf(&buf, "generation %d\n", c.Generation)
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "committer %s\n", c.Committer)
	fmt.Fprintf(&buf, "timestamp %d\n", c.TimestampN)
	if len(c.Signature) > 0 {
		fmt.Fprintf(&buf, "signature %x\n", c.Signature)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// DecodeCommit parses a canonical commit serialization.
func DecodeCommit(b []byte) (*Commit, error) {
	c := &Commit{}
	rest := b
	for {
		idx := bytes.IndexByte(rest, '\n')
		if idx == -1 {
			return nil, fmt.Errorf("%w: commit missing blank-line separator", ErrInvalidFormat)
		}
		line := rest[:idx]
		rest = rest[idx+1:]
		if len(line) == 0 {
			break
		}
		sp := bytes.IndexByte(line, ' ')
		if sp == -1 {
			return nil, fmt.Errorf("%w: malformed commit header line %q", ErrInvalidFormat, line)
		}
		key, val := string(line[:sp]), string(line[sp+1:])
		switch key {
		case "tree":
			h, err := hashutil.ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("%w: commit tree hash: %v", ErrInvalidFormat, err)
			}
			c.TreeHash = h
		case "parent":
			h, err := hashutil.ParseHash(val)
			if err != nil {
				return nil, fmt.Errorf("%w: commit parent hash: %v", ErrInvalidFormat, err)
			}
			c.Parents = append(c.Parents, h)
		case "generation":
			if _, err := fmt.Sscanf(val, "%d", &c.Generation); err != nil {
				return nil, fmt.Errorf("%w: commit generation: %v", ErrInvalidFormat, err)
			}
		case "author":
			c.Author = val
		case "committer":
			c.Committer = val
		case "timestamp":
			if _, err := fmt.Sscanf(val, "%d", &c.TimestampN); err != nil {
				return nil, fmt.Errorf("%w: commit timestamp: %v", ErrInvalidFormat, err)
			}
		case "signature":
			sig := make([]byte, len(val)/2)
			if _, err := fmt.Sscanf(val, "%x", &sig); err != nil {
				return nil, fmt.Errorf("%w: commit signature: %v", ErrInvalidFormat, err)
			}
			c.Signature = sig
		}
	}
	c.Message = string(rest)
	return c, nil
}
