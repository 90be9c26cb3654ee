// Package chunk holds the value types shared across the chunking,
// codec, store, index, and assembler layers.
package chunk

import (
	"fmt"

	"github.com/casyncd/casyncd/internal/cdcerr"
)

// WindowSize is the rolling hash window, fixed by the wire format.
const WindowSize = 48

// Chunk is an immutable description of one content-defined chunk.
// Uncompressed and Compressed are populated only while the chunk is in
// flight through the encode/decode pipeline; neither is retained once a
// chunk has been durably stored.
type Chunk struct {
	ID           [32]byte
	Size         uint64
	Offset       uint64
	Checksum     [32]byte
	Uncompressed []byte
	Compressed   []byte
}

// Compression selects the payload codec used when framing a chunk.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseCompression maps a CLI/config string to a Compression value.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "zstd", "":
		return CompressionZstd, nil
	case "none":
		return CompressionNone, nil
	default:
		return CompressionNone, cdcerr.New(cdcerr.UnsupportedCompression, "chunk.ParseCompression", nil)
	}
}

// Config holds the (min, avg, max) chunking parameters and codec choice.
// It is a value: once validated, every component treats it as read-only.
type Config struct {
	MinSize     uint64
	AvgSize     uint64
	MaxSize     uint64
	Compression Compression
	Level       int // zstd level, meaningful iff Compression == CompressionZstd
}

// DefaultConfig mirrors desync/casync's own defaults: 16KiB/64KiB/256KiB.
func DefaultConfig() Config {
	return Config{
		MinSize:     16 * 1024,
		AvgSize:     64 * 1024,
		MaxSize:     256 * 1024,
		Compression: CompressionZstd,
		Level:       1,
	}
}

// Validate enforces spec §3's construction invariants.
func (c Config) Validate() error {
	const op = "chunk.Config.Validate"
	if c.MinSize < WindowSize {
		return cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("min_size %d is below window size %d", c.MinSize, WindowSize))
	}
	if !(c.MinSize < c.AvgSize && c.AvgSize < c.MaxSize) {
		return cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("sizes must satisfy min < avg < max, got min=%d avg=%d max=%d", c.MinSize, c.AvgSize, c.MaxSize))
	}
	if c.MinSize > c.AvgSize/4 {
		return cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("min_size %d must be <= avg_size/4 (%d)", c.MinSize, c.AvgSize/4))
	}
	if c.MaxSize < 4*c.AvgSize {
		return cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("max_size %d must be >= 4*avg_size (%d)", c.MaxSize, 4*c.AvgSize))
	}
	switch c.Compression {
	case CompressionNone, CompressionZstd:
	default:
		return cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("unknown compression %v", c.Compression))
	}
	return nil
}
