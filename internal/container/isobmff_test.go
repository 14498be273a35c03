package container

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

func makeBox(boxType string, body []byte) []byte {
	var buf bytes.Buffer
	size := uint32(8 + len(body))
	binary.Write(&buf, binary.BigEndian, size)
	buf.WriteString(boxType)
	buf.Write(body)
	return buf.Bytes()
}

func sampleMP4(moovBody []byte) []byte {
	var out []byte
	out = append(out, makeBox("ftyp", []byte("isommp42"))...)
	out = append(out, makeBox("moov", moovBody)...)
	out = append(out, makeBox("mdat", bytes.Repeat([]byte{0x55}, 4096))...)
	return out
}

func TestIsISOBMFF(t *testing.T) {
	data := sampleMP4([]byte("metadata-v1"))
	if !IsISOBMFF(data[:16]) {
		t.Fatal("expected ftyp-led stream to be detected")
	}
	if IsISOBMFF([]byte("not an mp4 at all......")) {
		t.Fatal("expected non-ISOBMFF stream to be rejected")
	}
}

func TestAnalyzeExtractsMoov(t *testing.T) {
	data := sampleMP4([]byte("metadata-v1"))
	split, err := Analyze(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(split.Boxes) != 3 {
		t.Fatalf("expected 3 top-level boxes, got %d", len(split.Boxes))
	}
	wantMoov := makeBox("moov", []byte("metadata-v1"))
	if !bytes.Equal(split.Metadata, wantMoov) {
		t.Fatalf("extracted moov mismatch")
	}
}

func TestPayloadReaderElidesMoov(t *testing.T) {
	data := sampleMP4([]byte("metadata-v1"))
	split, err := Analyze(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	pr, err := split.PayloadReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("PayloadReader: %v", err)
	}
	payload, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if bytes.Contains(payload, []byte("metadata-v1")) {
		t.Fatal("payload still contains moov bytes")
	}
	if len(payload)+len(split.Metadata) != len(data) {
		t.Fatalf("payload+metadata length mismatch: %d + %d != %d", len(payload), len(split.Metadata), len(data))
	}
}

func TestReassembleIsByteExact(t *testing.T) {
	data := sampleMP4([]byte("metadata-v2-longer-body"))
	split, err := Analyze(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	pr, err := split.PayloadReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("PayloadReader: %v", err)
	}
	payload, err := io.ReadAll(pr)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}

	var out bytes.Buffer
	if err := Reassemble(&out, bytes.NewReader(payload), split.MetadataOffset, split.Metadata); err != nil {
		t.Fatalf("Reassemble: %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatal("reassembled stream is not byte-exact")
	}
}

func TestAnalyzeFragmentedIsOpaque(t *testing.T) {
	var data []byte
	data = append(data, makeBox("ftyp", []byte("isommp42"))...)
	data = append(data, makeBox("moof", []byte("frag"))...)
	data = append(data, makeBox("mdat", []byte("payload"))...)

	_, err := Analyze(bytes.NewReader(data))
	if !IsOpaqueFallback(err) {
		t.Fatalf("expected opaque fallback for fragmented stream, got %v", err)
	}
}

func TestAnalyzeMultipleMoovTakesFirst(t *testing.T) {
	var data []byte
	data = append(data, makeBox("ftyp", []byte("isommp42"))...)
	data = append(data, makeBox("moov", []byte("first"))...)
	data = append(data, makeBox("free", []byte("pad"))...)
	data = append(data, makeBox("moov", []byte("second-moov-treated-as-payload"))...)
	data = append(data, makeBox("mdat", []byte("payload"))...)

	split, err := Analyze(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !bytes.Equal(split.Metadata, makeBox("moov", []byte("first"))) {
		t.Fatalf("expected first moov to be extracted")
	}
}
