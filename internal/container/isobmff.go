// Package container implements an ISOBMFF-aware split: it isolates the
// `moov` metadata box from the `mdat` media payload so that metadata-only
// edits do not perturb payload chunk boundaries. There is no third-party
// ISOBMFF parser anywhere in the retrieved dependency corpus (see
// DESIGN.md); box walking is a few dozen lines of length-prefixed record
// parsing, squarely stdlib territory, in the same encoding/binary style
// go-delta's internal/format package uses for its own framed records.
package container

import (
	"encoding/binary"
	"fmt"
	"io"
)

// box header sizes per ISO/IEC 14496-12.
const (
	boxHeaderSize     = 8  // size(4) + type(4)
	box64HeaderSize   = 16 // size(4)==1 + type(4) + largesize(8)
	ftypMinBoxes      = 1
	moovFtypProbeSize = 12
)

// Box is one top-level box record as recorded during the walk.
type Box struct {
	Type   [4]byte
	Offset uint64 // offset of the box header within the input stream
	Length uint64 // total box length including its header
}

func (b Box) typeString() string { return string(b.Type[:]) }

// Split describes how an ISOBMFF input was separated into a residual
// payload stream (everything except `moov`) and the extracted metadata box.
type Split struct {
	// Boxes is the full top-level box list, in stream order, including moov.
	Boxes []Box

	// MetadataOffset is the byte offset of the moov box in the original input.
	MetadataOffset uint64

	// Metadata holds the raw bytes of the extracted moov box (including its
	// own header).
	Metadata []byte

	// Fragmented is reserved for fragmented MP4 (top-level moof boxes).
	// Analyze returns the opaque fallback for such streams instead of a
	// Split, so it never sets this field: it is false on every Split
	// Analyze returns.
	Fragmented bool
}

// IsISOBMFF reports whether the first 12 bytes identify an ISOBMFF stream,
// i.e. a box whose type is "ftyp" starting at offset 0.
func IsISOBMFF(head []byte) bool {
	if len(head) < moovFtypProbeSize {
		return false
	}
	return string(head[4:8]) == "ftyp"
}

// errOpaque signals "fall back to opaque chunking"; it is not a failure,
// the ingest pipeline treats it as a routing decision.
var errOpaque = fmt.Errorf("container: malformed or fragmented stream, falling back to opaque")

// IsOpaqueFallback reports whether err indicates the caller should treat
// the stream as opaque rather than container-aware (fragmented files,
// malformed box lengths).
func IsOpaqueFallback(err error) bool {
	return err == errOpaque
}

// readBoxes walks the top-level box list of r (which must support io.Seeker
// semantics via ReadSeeker) until a read returns io.EOF at a box boundary.
func readBoxes(r io.ReadSeeker) ([]Box, error) {
	var boxes []Box
	var offset uint64
	for {
		hdr := make([]byte, boxHeaderSize)
		n, err := io.ReadFull(r, hdr)
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("container: read box header at %d: %w", offset, err)
		}

		size := uint64(binary.BigEndian.Uint32(hdr[0:4]))
		var typ [4]byte
		copy(typ[:], hdr[4:8])
		headerSize := uint64(boxHeaderSize)

		switch size {
		case 0:
			// Box extends to end of file/stream: only legal for the last
			// box. Determine remaining length by seeking to end.
			cur, err := r.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, fmt.Errorf("container: seek current: %w", err)
			}
			end, err := r.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, fmt.Errorf("container: seek end: %w", err)
			}
			size = uint64(end-cur) + headerSize
			if _, err := r.Seek(cur, io.SeekStart); err != nil {
				return nil, fmt.Errorf("container: seek back: %w", err)
			}
		case 1:
			// 64-bit large size follows immediately.
			ext := make([]byte, 8)
			if _, err := io.ReadFull(r, ext); err != nil {
				return nil, fmt.Errorf("container: read largesize at %d: %w", offset, err)
			}
			size = binary.BigEndian.Uint64(ext)
			headerSize = box64HeaderSize
		}

		if size < headerSize {
			return nil, errOpaque
		}

		boxes = append(boxes, Box{Type: typ, Offset: offset, Length: size})

		// Skip to the next box.
		body := int64(size - headerSize)
		if _, err := r.Seek(body, io.SeekCurrent); err != nil {
			return nil, errOpaque
		}
		offset += size
	}
	return boxes, nil
}

// Analyze walks an ISOBMFF stream's top-level boxes and, if eligible,
// extracts the first `moov` box as metadata. It returns errOpaque (checked
// with IsOpaqueFallback) for fragmented (`moof`) streams or malformed box
// lengths.
func Analyze(r io.ReadSeeker) (*Split, error) {
	boxes, err := readBoxes(r)
	if err != nil {
		if IsOpaqueFallback(err) {
			return nil, err
		}
		return nil, err
	}

	var moovIdx = -1
	for i, b := range boxes {
		switch b.typeString() {
		case "moof":
			return nil, errOpaque
		case "moov":
			if moovIdx == -1 {
				moovIdx = i
			}
			// Multiple moov boxes: only the first is extracted; later ones
			// are treated as ordinary payload.
		}
	}

	if moovIdx == -1 {
		// No moov box at all: nothing to extract, but still a valid
		// ISOBMFF stream (e.g. fragmented-less progressive download); treat
		// as opaque since there is no metadata/payload boundary to exploit.
		return nil, errOpaque
	}

	moov := boxes[moovIdx]
	metadata := make([]byte, moov.Length)
	if _, err := r.Seek(int64(moov.Offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("container: seek to moov: %w", err)
	}
	if _, err := io.ReadFull(r, metadata); err != nil {
		return nil, fmt.Errorf("container: read moov body: %w", err)
	}

	return &Split{
		Boxes:          boxes,
		MetadataOffset: moov.Offset,
		Metadata:       metadata,
	}, nil
}

// PayloadReader returns a reader over r's bytes with the moov box elided,
// suitable for feeding to the chunker. r must be positioned at offset 0.
func (s *Split) PayloadReader(r io.ReadSeeker) (io.Reader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return &elidingReader{r: r, elideFrom: s.MetadataOffset, elideLen: uint64(len(s.Metadata))}, nil
}

// elidingReader streams r's bytes while skipping [elideFrom, elideFrom+elideLen).
type elidingReader struct {
	r         io.ReadSeeker
	pos       uint64
	elideFrom uint64
	elideLen  uint64
	skipped   bool
}

func (e *elidingReader) Read(p []byte) (int, error) {
	if !e.skipped && e.pos == e.elideFrom {
		if _, err := e.r.Seek(int64(e.elideLen), io.SeekCurrent); err != nil {
			return 0, err
		}
		e.pos += e.elideLen
		e.skipped = true
	}
	max := len(p)
	if !e.skipped && e.elideFrom > e.pos {
		if remain := e.elideFrom - e.pos; uint64(max) > remain {
			max = int(remain)
		}
	}
	n, err := e.r.Read(p[:max])
	e.pos += uint64(n)
	return n, err
}

// Reassemble writes the residual payload bytes from payload, re-inserting
// metadata at its recorded offset, to w. It is the inverse of PayloadReader
// + the extracted Metadata, used during checkout to rebuild a
// byte-identical ISOBMFF file.
func Reassemble(w io.Writer, payload io.Reader, metadataOffset uint64, metadata []byte) error {
	if _, err := io.CopyN(w, payload, int64(metadataOffset)); err != nil && err != io.EOF {
		return fmt.Errorf("container: copy pre-moov payload: %w", err)
	}
	if _, err := w.Write(metadata); err != nil {
		return fmt.Errorf("container: write moov: %w", err)
	}
	if _, err := io.Copy(w, payload); err != nil {
		return fmt.Errorf("container: copy post-moov payload: %w", err)
	}
	return nil
}
