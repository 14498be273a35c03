package hashutil

import (
	"bytes"
	"testing"
)

func TestBytesAndStreamAgree(t *testing.T) {
	cases := []int{0, 1, 1024, 1 << 20, (1 << 20) + 17}
	for _, size := range cases {
		data := bytes.Repeat([]byte{0x41}, size)
		want := Bytes(data)
		got, err := Stream(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("size %d: Stream error: %v", size, err)
		}
		if got != want {
			t.Fatalf("size %d: Stream/Bytes mismatch: %s != %s", size, got, want)
		}
	}
}

func TestHasherMatchesBytes(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	h := New()
	h.Write(data[:10])
	h.Write(data[10:])
	if got, want := h.Finalize(), Bytes(data); got != want {
		t.Fatalf("incremental hasher mismatch: %s != %s", got, want)
	}
}

func TestHashRoundTripHex(t *testing.T) {
	h := Bytes([]byte("round trip"))
	s := h.String()
	parsed, err := ParseHash(s)
	if err != nil {
		t.Fatalf("ParseHash: %v", err)
	}
	if parsed != h {
		t.Fatalf("parsed hash mismatch")
	}
}

func TestParseHashRejectsBadInput(t *testing.T) {
	if _, err := ParseHash("short"); err == nil {
		t.Fatal("expected error for short hash")
	}
	if _, err := ParseHash(string(bytes.Repeat([]byte("zz"), Size))); err == nil {
		t.Fatal("expected error for non-hex hash")
	}
}
