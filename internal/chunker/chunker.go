// Package chunker splits byte streams into content-defined chunks using
// FastCDC, grounded on the wrapper in go-delta's internal/chunker but
// reshaped into a pull-based iterator so callers (the ingest pipeline) never
// hold more than one chunk's worth of bytes at a time.
package chunker

import (
	"fmt"
	"io"

	fastcdc "github.com/jotfs/fastcdc-go"
)

// Default bounds. A repo's core.chunkMin/Avg/Max config overrides these.
const (
	DefaultMin = 32 * 1024
	DefaultAvg = 64 * 1024
	DefaultMax = 256 * 1024
)

// Params configures the chunk boundaries. The zero value is invalid; use
// DefaultParams or New with explicit bounds.
type Params struct {
	Min uint64
	Avg uint64
	Max uint64
}

// DefaultParams returns the frozen default bounds.
func DefaultParams() Params {
	return Params{Min: DefaultMin, Avg: DefaultAvg, Max: DefaultMax}
}

func (p Params) validate() error {
	if p.Min == 0 || p.Avg == 0 || p.Max == 0 {
		return fmt.Errorf("chunker: bounds must be non-zero (got min=%d avg=%d max=%d)", p.Min, p.Avg, p.Max)
	}
	if !(p.Min <= p.Avg && p.Avg <= p.Max) {
		return fmt.Errorf("chunker: bounds must satisfy min<=avg<=max (got min=%d avg=%d max=%d)", p.Min, p.Avg, p.Max)
	}
	return nil
}

// Range is one content-defined chunk: its payload-relative byte offset,
// length, and raw bytes. The Chunker never buffers more than one Range's
// worth of data (bounded by Params.Max) at a time.
type Range struct {
	Offset uint64
	Data   []byte
}

// Chunker is a lazy, finite sequence of Ranges over an io.Reader. Call Next
// until it returns io.EOF.
type Chunker struct {
	inner  *fastcdc.Chunker
	offset uint64
}

// New constructs a Chunker over r using the given bounds.
func New(r io.Reader, p Params) (*Chunker, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	inner, err := fastcdc.NewChunker(r, fastcdc.Options{
		MinSize:     int(p.Min),
		AverageSize: int(p.Avg),
		MaxSize:     int(p.Max),
	})
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}
	return &Chunker{inner: inner}, nil
}

// Next returns the next content-defined chunk, or io.EOF when the stream is
// exhausted. The returned Range's Data is owned by the caller: FastCDC
// reuses its internal buffer between calls, so Next copies it out.
func (c *Chunker) Next() (Range, error) {
	fc, err := c.inner.Next()
	if err != nil {
		return Range{}, err
	}
	data := make([]byte, len(fc.Data))
	copy(data, fc.Data)
	r := Range{Offset: c.offset, Data: data}
	c.offset += uint64(len(data))
	return r, nil
}
