package manifest

import (
	"testing"

	"github.com/dits-vcs/dits/internal/hashutil"
)

func TestAssetRoundTrip(t *testing.T) {
	a := &Asset{
		Size:        100,
		ContentKind: KindOpaque,
		Chunks: []ChunkRef{
			{Hash: hashutil.Bytes([]byte("chunk-1")), Offset: 0, Length: 50},
			{Hash: hashutil.Bytes([]byte("chunk-2")), Offset: 50, Length: 50},
		},
		ContentHash: hashutil.Bytes([]byte("full content")),
	}
	got, err := DecodeAsset(a.Encode())
	if err != nil {
		t.Fatalf("DecodeAsset: %v", err)
	}
	if got.Size != a.Size || len(got.Chunks) != 2 || got.ContentHash != a.ContentHash {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestAssetWithContainerMetadataRoundTrip(t *testing.T) {
	a := &Asset{
		Size:        4096,
		ContentKind: KindISOBMFF,
		ContainerMetadata: &ContainerMetadata{
			Hash:           hashutil.Bytes([]byte("moov")),
			OriginalOffset: 12,
		},
		ContentHash: hashutil.Bytes([]byte("mp4 bytes")),
	}
	got, err := DecodeAsset(a.Encode())
	if err != nil {
		t.Fatalf("DecodeAsset: %v", err)
	}
	if got.ContainerMetadata == nil || got.ContainerMetadata.OriginalOffset != 12 {
		t.Fatalf("container metadata lost on round trip: %+v", got.ContainerMetadata)
	}
}

func TestEmptyAssetHasPinnedHash(t *testing.T) {
	a := &Asset{Size: 0, ContentKind: KindOpaque, ContentHash: hashutil.Bytes(nil)}
	got := Hash(TagAsset, a.Encode())
	// Golden value: BLAKE3('A' || encode(empty asset)). Any change to the
	// canonical asset encoding must update this pin deliberately.
	want, err := hashutil.ParseHash("4666b678d1e0ca9c2bd9fff3529d2be91d6fb92952c776cd052d5711a109e29d")
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if got != want {
		t.Fatalf("empty asset hash changed: got %s, want %s", got, want)
	}
}

func TestTreeRejectsUnsortedOnDecode(t *testing.T) {
	tr := &Tree{Entries: []TreeEntry{
		{Name: "b", Kind: EntryAsset, Hash: hashutil.Bytes([]byte("b"))},
		{Name: "a", Kind: EntryAsset, Hash: hashutil.Bytes([]byte("a"))},
	}}
	if _, err := DecodeTree(tr.Encode()); err == nil {
		t.Fatal("expected error decoding unsorted tree")
	}
}

func TestTreeRoundTripSorted(t *testing.T) {
	tr := &Tree{Entries: []TreeEntry{
		{Name: "b.txt", Kind: EntryAsset, Hash: hashutil.Bytes([]byte("b")), Mode: 0o644},
		{Name: "a.txt", Kind: EntryAsset, Hash: hashutil.Bytes([]byte("a")), Mode: 0o644},
		{Name: "sub", Kind: EntryTree, Hash: hashutil.Bytes([]byte("sub")), Mode: 0o755},
	}}
	tr.Sort()
	if name, bad := tr.DuplicateOrUnsorted(); bad {
		t.Fatalf("sorted tree reported as unsorted at %q", name)
	}
	got, err := DecodeTree(tr.Encode())
	if err != nil {
		t.Fatalf("DecodeTree: %v", err)
	}
	if len(got.Entries) != 3 || got.Entries[0].Name != "a.txt" {
		t.Fatalf("unexpected decode: %+v", got.Entries)
	}
}

func TestCommitRoundTrip(t *testing.T) {
	c := &Commit{
		TreeHash:   hashutil.Bytes([]byte("tree")),
		Parents:    []hashutil.Hash{hashutil.Bytes([]byte("p1")), hashutil.Bytes([]byte("p2"))},
		Author:     "Ada Lovelace <ada@example.com>",
		Committer:  "Ada Lovelace <ada@example.com>",
		TimestampN: 1735689600000000000,
		Message:    "initial commit\n\nwith a body",
	}
	got, err := DecodeCommit(c.Encode())
	if err != nil {
		t.Fatalf("DecodeCommit: %v", err)
	}
	if got.TreeHash != c.TreeHash || len(got.Parents) != 2 || got.Message != c.Message {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDomainSeparationPreventsCollision(t *testing.T) {
	body := []byte("identical bytes")
	if Hash(TagTree, body) == Hash(TagCommit, body) {
		t.Fatal("domain tags failed to separate identical bodies")
	}
}
