// Package codec compresses and frames chunk payloads for on-disk storage
// as .cacnk files. Adapted from the teacher's internal/compress package,
// trimmed to the two algorithms the wire format keeps in scope: zstd and
// none.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/pkg/chunk"
)

// frame layout: magic(4) | tag(1) | length(4, BE) | payload(length)
var magic = [4]byte{'C', 'A', 'N', 'K'}

const (
	tagNone byte = 0x00
	tagZstd byte = 0x01
	headerLen = 4 + 1 + 4
)

// Codec compresses/decompresses and frames chunk payloads for a fixed
// compression choice.
type Codec struct {
	compression chunk.Compression
	level       int
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
}

// New creates a Codec. For CompressionZstd, level selects the zstd
// encoder level (1 = fastest, matching the teacher's default).
func New(compression chunk.Compression, level int) (*Codec, error) {
	const op = "codec.New"
	c := &Codec{compression: compression, level: level}

	if compression == chunk.CompressionZstd {
		if level <= 0 {
			level = 1
		}
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("create zstd encoder: %w", err))
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, cdcerr.New(cdcerr.ConfigError, op, fmt.Errorf("create zstd decoder: %w", err))
		}
		c.encoder = enc
		c.decoder = dec
	}

	return c, nil
}

// Close releases the underlying zstd encoder/decoder, if any.
func (c *Codec) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}

// Encode compresses data (if configured) and frames it as a .cacnk
// payload. The chunk id is never embedded in the frame — it is carried
// by the Index and by the on-disk filename.
func (c *Codec) Encode(data []byte) ([]byte, error) {
	var tag byte
	var payload []byte

	switch c.compression {
	case chunk.CompressionZstd:
		tag = tagZstd
		payload = c.encoder.EncodeAll(data, nil)
	case chunk.CompressionNone:
		tag = tagNone
		payload = data
	default:
		return nil, cdcerr.New(cdcerr.UnsupportedCompression, "codec.Encode", nil)
	}

	frame := make([]byte, headerLen+len(payload))
	copy(frame[0:4], magic[:])
	frame[4] = tag
	binary.BigEndian.PutUint32(frame[5:9], uint32(len(payload)))
	copy(frame[headerLen:], payload)
	return frame, nil
}

// Decode reverses Encode, tolerating both zstd-framed and uncompressed
// payloads regardless of the Codec's own configured compression —
// decoding is driven entirely by the frame's own tag byte.
func (c *Codec) Decode(frame []byte) ([]byte, error) {
	const op = "codec.Decode"
	if len(frame) < headerLen || [4]byte(frame[0:4]) != magic {
		return nil, cdcerr.New(cdcerr.InvalidMagic, op, nil)
	}
	tag := frame[4]
	length := binary.BigEndian.Uint32(frame[5:9])
	payload := frame[headerLen:]
	if uint32(len(payload)) != length {
		return nil, cdcerr.New(cdcerr.IoError, op, fmt.Errorf("frame length mismatch: header says %d, got %d", length, len(payload)))
	}

	switch tag {
	case tagNone:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	case tagZstd:
		dec, err := decoderFor(c)
		if err != nil {
			return nil, cdcerr.New(cdcerr.ConfigError, op, err)
		}
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, cdcerr.New(cdcerr.DecompressionFailed, op, err)
		}
		return out, nil
	default:
		return nil, cdcerr.New(cdcerr.UnsupportedCompression, op, fmt.Errorf("tag 0x%02x", tag))
	}
}

// decoderFor returns c's zstd decoder, lazily creating one if Codec was
// configured for "none" but happens to decode a zstd-tagged frame (valid
// per the Decode contract: decoding tolerates any tag it encounters).
func decoderFor(c *Codec) (*zstd.Decoder, error) {
	if c.decoder != nil {
		return c.decoder, nil
	}
	return zstd.NewReader(nil)
}

// Ratio returns compressed/uncompressed, matching the teacher's
// Compressor.Ratio semantics.
func Ratio(uncompressedLen, compressedLen int) float64 {
	if uncompressedLen == 0 {
		return 1.0
	}
	return float64(compressedLen) / float64(uncompressedLen)
}
