package ingest

import (
	"bytes"
	"io"
	"os"
	"unicode/utf8"

	"github.com/dits-vcs/dits/internal/container"
	"github.com/dits-vcs/dits/internal/manifest"
)

const sniffSize = 8000

// maxTextSize is the largest file classify will ever report as KindText;
// beyond it, line-diff-oriented handling stops paying for itself and the
// content is treated as opaque instead.
const maxTextSize = 1 << 20

// classify inspects a file to pick a ContentKind. ISOBMFF detection takes
// priority (it has its own byte-exact signature). Otherwise the file is
// text only if the first sniffSize bytes contain no NUL byte, decode as
// valid UTF-8, and the whole file is no larger than maxTextSize; anything
// else is opaque, the same binary/text heuristic git itself uses in
// buffer_is_binary plus the size and encoding gates spec.md's text-mode
// rule adds on top of it.
func classify(path string, size int64) (manifest.ContentKind, error) {
	f, err := os.Open(path)
	if err != nil {
		return manifest.KindOpaque, err
	}
	defer f.Close()

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return manifest.KindOpaque, err
	}
	head = head[:n]

	if container.IsISOBMFF(head) {
		return manifest.KindISOBMFF, nil
	}
	if bytes.IndexByte(head, 0) != -1 {
		return manifest.KindOpaque, nil
	}
	if size > maxTextSize {
		return manifest.KindOpaque, nil
	}
	if !validUTF8Prefix(head) {
		return manifest.KindOpaque, nil
	}
	return manifest.KindText, nil
}

// validUTF8Prefix reports whether head, a byte-count prefix of a file
// rather than the whole of it, decodes as valid UTF-8. Since head may end
// mid-rune purely because of where the sniff window was cut, any
// incomplete trailing sequence is trimmed before validating rather than
// counted as invalid encoding. This is a prefix-only approximation: a file
// that turns invalid only after sniffSize bytes is still classified as
// text.
func validUTF8Prefix(head []byte) bool {
	for i := 1; i < utf8.UTFMax && i <= len(head); i++ {
		if utf8.RuneStart(head[len(head)-i]) {
			if !utf8.FullRune(head[len(head)-i:]) {
				head = head[:len(head)-i]
			}
			break
		}
	}
	return utf8.Valid(head)
}
