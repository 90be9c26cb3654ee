// Package index implements the .caibx/.caidx binary index format:
// an ordered, checksummed table of chunk descriptors that together
// describe how to reconstruct an original stream from its chunks.
// Grounded on the real desync Index/IndexChunk/IndexFromReader/WriteTo
// shape (see other_examples' desync index.go reference) but using the
// fixed binary layout spec'd for this format rather than desync's own
// varint-ish FormatHeader framing, and wrapping errors with
// github.com/pkg/errors the way that reference file does.
package index

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/chunkid"
	"github.com/casyncd/casyncd/internal/codec"
	"github.com/casyncd/casyncd/pkg/chunk"
)

// Format selects which magic an index serializes under. The two formats
// are structurally identical; only the magic differs.
type Format int

const (
	Caibx Format = iota // blob-chunk index
	Caidx               // directory-archive-chunk index
)

var (
	magicCaibx = [3]byte{0xCA, 0x1B, 0x5C}
	magicCaidx = [3]byte{0xCA, 0x1D, 0x5C}
)

const formatVersion uint32 = 1

// Policy selects whether Encode embeds each chunk's compressed payload
// (self-contained, larger file, no external ChunkStore needed to
// reassemble) or omits it (payload-less, smaller file, reassembly reads
// from a ChunkStore).
type Policy int

const (
	// WithPayloads embeds each chunk's compressed bytes in the index.
	WithPayloads Policy = iota
	// PayloadsExternal zero-lengths every chunk's compressed payload;
	// the Assembler must source bytes from a ChunkStore instead.
	PayloadsExternal
)

// ChunkDescriptor is one entry in an Index's chunk table.
type ChunkDescriptor struct {
	ID             [32]byte
	Size           uint64 // uncompressed size
	CompressedSize uint32
	Offset         uint64 // offset into the original stream
	Checksum       [32]byte // SHA-256 of the uncompressed bytes
	Payload        []byte   // compressed bytes; empty under PayloadsExternal
}

// Index is the in-memory form of a .caibx/.caidx file.
type Index struct {
	Format    Format
	TotalSize uint64
	CreatedAt time.Time
	Checksum  [32]byte
	Chunks    []ChunkDescriptor
}

// New builds an Index from an ordered chunk list, computing TotalSize and
// the index-level checksum (SHA-256 over concatenated chunk ids).
func New(chunks []ChunkDescriptor, format Format, createdAt time.Time) Index {
	idx := Index{Format: format, Chunks: chunks, CreatedAt: createdAt}
	var h = sha256.New()
	for _, c := range chunks {
		idx.TotalSize += c.Size
		h.Write(c.ID[:])
	}
	copy(idx.Checksum[:], h.Sum(nil))
	return idx
}

// FilenameFor returns the conventional index filename for originalPath.
func FilenameFor(originalPath string, format Format) string {
	switch format {
	case Caidx:
		return originalPath + ".caidx"
	default:
		return originalPath + ".caibx"
	}
}

// GetByID returns the descriptor for id, if present.
func (idx *Index) GetByID(id [32]byte) (ChunkDescriptor, bool) {
	for _, c := range idx.Chunks {
		if c.ID == id {
			return c, true
		}
	}
	return ChunkDescriptor{}, false
}

// GetInRange returns, in order, every chunk intersecting [start, end).
func (idx *Index) GetInRange(start, end uint64) []ChunkDescriptor {
	var out []ChunkDescriptor
	for _, c := range idx.Chunks {
		cEnd := c.Offset + c.Size
		if c.Offset < end && cEnd > start {
			out = append(out, c)
		}
	}
	return out
}

// TotalCompressedSize sums every chunk's CompressedSize.
func (idx *Index) TotalCompressedSize() uint64 {
	var total uint64
	for _, c := range idx.Chunks {
		total += uint64(c.CompressedSize)
	}
	return total
}

// CompressionRatio is TotalCompressedSize/TotalSize, or 1.0 for an empty
// index.
func (idx *Index) CompressionRatio() float64 {
	if idx.TotalSize == 0 {
		return 1.0
	}
	return float64(idx.TotalCompressedSize()) / float64(idx.TotalSize)
}

// Validate checks every invariant spec'd for a conforming index: each
// chunk id matches SHA-512/256 of its decompressed payload (only checked
// when a payload is embedded), the size sum equals TotalSize, the
// checksum matches, and offsets are contiguous and monotone.
func (idx *Index) Validate() error {
	const op = "index.Index.Validate"

	h := sha256.New()
	var sizeSum uint64
	var wantOffset uint64
	for i, c := range idx.Chunks {
		h.Write(c.ID[:])
		sizeSum += c.Size

		if c.Offset != wantOffset {
			return cdcerr.WithChunk(cdcerr.IndexChecksumMismatch, op, chunkid.Hex(c.ID), int64(c.Offset),
				errors.Errorf("chunk %d offset %d, want %d (non-contiguous)", i, c.Offset, wantOffset))
		}
		wantOffset += c.Size

		if len(c.Payload) > 0 {
			data, err := decodeAndVerify(c)
			if err != nil {
				return err
			}
			_ = data
		}
	}

	if sizeSum != idx.TotalSize {
		return cdcerr.New(cdcerr.IndexChecksumMismatch, op,
			errors.Errorf("chunk size sum %d does not match total_size %d", sizeSum, idx.TotalSize))
	}

	var gotChecksum [32]byte
	copy(gotChecksum[:], h.Sum(nil))
	if gotChecksum != idx.Checksum {
		return cdcerr.New(cdcerr.IndexChecksumMismatch, op, errors.New("index checksum mismatch"))
	}

	return nil
}

func decodeAndVerify(c ChunkDescriptor) ([]byte, error) {
	const op = "index.decodeAndVerify"
	// Payload tag is self-describing (codec.Decode dispatches on the
	// frame's own tag byte), so any Codec instance can decode it.
	cc, err := codec.New(chunk.CompressionNone, 0)
	if err != nil {
		return nil, cdcerr.New(cdcerr.ConfigError, op, err)
	}
	defer cc.Close()

	data, err := cc.Decode(c.Payload)
	if err != nil {
		return nil, cdcerr.WithChunk(cdcerr.DecompressionFailed, op, chunkid.Hex(c.ID), int64(c.Offset), err)
	}
	gotID := chunkid.Compute(data)
	if gotID != c.ID {
		return nil, cdcerr.WithChunk(cdcerr.ChunkIdMismatch, op, chunkid.Hex(c.ID), int64(c.Offset),
			errors.Errorf("recomputed id %s", chunkid.Hex(gotID)))
	}
	return data, nil
}

// Encode serializes idx per spec, embedding payloads iff policy ==
// WithPayloads.
func (idx *Index) Encode(w io.Writer, policy Policy) error {
	const op = "index.Index.Encode"

	var magic [3]byte
	switch idx.Format {
	case Caidx:
		magic = magicCaidx
	default:
		magic = magicCaibx
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	writeU32(&buf, formatVersion)
	writeU32(&buf, uint32(len(idx.Chunks)))
	writeU64(&buf, idx.TotalSize)
	writeU64(&buf, uint64(idx.CreatedAt.Unix()))
	writeU16(&buf, uint16(len(idx.Checksum)))
	buf.Write(idx.Checksum[:])

	for _, c := range idx.Chunks {
		payload := c.Payload
		if policy == PayloadsExternal {
			payload = nil
		}
		writeU32(&buf, uint32(c.Size))
		writeU32(&buf, uint32(len(payload)))
		writeU64(&buf, c.Offset)
		writeU16(&buf, uint16(len(c.ID)))
		buf.Write(c.ID[:])
		writeU16(&buf, uint16(len(c.Checksum)))
		buf.Write(c.Checksum[:])
		buf.Write(payload)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	return nil
}

// Decode parses a .caibx/.caidx stream.
func Decode(r io.Reader) (Index, error) {
	const op = "index.Decode"
	var idx Index

	var magic [3]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return idx, cdcerr.New(cdcerr.IoError, op, errors.Wrap(err, "reading magic"))
	}
	switch magic {
	case magicCaibx:
		idx.Format = Caibx
	case magicCaidx:
		idx.Format = Caidx
	default:
		return idx, cdcerr.New(cdcerr.InvalidMagic, op, errors.Errorf("magic %x", magic))
	}

	version, err := readU32(r)
	if err != nil {
		return idx, cdcerr.New(cdcerr.IoError, op, err)
	}
	if version != formatVersion {
		return idx, cdcerr.New(cdcerr.UnsupportedVersion, op, errors.Errorf("version %d", version))
	}

	count, err := readU32(r)
	if err != nil {
		return idx, cdcerr.New(cdcerr.IoError, op, err)
	}
	idx.TotalSize, err = readU64(r)
	if err != nil {
		return idx, cdcerr.New(cdcerr.IoError, op, err)
	}
	createdAt, err := readU64(r)
	if err != nil {
		return idx, cdcerr.New(cdcerr.IoError, op, err)
	}
	idx.CreatedAt = time.Unix(int64(createdAt), 0).UTC()

	checksumLen, err := readU16(r)
	if err != nil {
		return idx, cdcerr.New(cdcerr.IoError, op, err)
	}
	checksum := make([]byte, checksumLen)
	if _, err := io.ReadFull(r, checksum); err != nil {
		return idx, cdcerr.New(cdcerr.IoError, op, errors.Wrap(err, "reading checksum"))
	}
	copy(idx.Checksum[:], checksum)

	idx.Chunks = make([]ChunkDescriptor, 0, count)
	for i := uint32(0); i < count; i++ {
		c, err := decodeChunk(r)
		if err != nil {
			return idx, errors.Wrapf(err, "chunk %d", i)
		}
		idx.Chunks = append(idx.Chunks, c)
	}

	return idx, nil
}

func decodeChunk(r io.Reader) (ChunkDescriptor, error) {
	var c ChunkDescriptor

	size, err := readU32(r)
	if err != nil {
		return c, err
	}
	c.Size = uint64(size)

	compSize, err := readU32(r)
	if err != nil {
		return c, err
	}
	c.CompressedSize = compSize

	c.Offset, err = readU64(r)
	if err != nil {
		return c, err
	}

	idLen, err := readU16(r)
	if err != nil {
		return c, err
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(r, id); err != nil {
		return c, err
	}
	copy(c.ID[:], id)

	checksumLen, err := readU16(r)
	if err != nil {
		return c, err
	}
	checksum := make([]byte, checksumLen)
	if _, err := io.ReadFull(r, checksum); err != nil {
		return c, err
	}
	copy(c.Checksum[:], checksum)

	if compSize > 0 {
		c.Payload = make([]byte, compSize)
		if _, err := io.ReadFull(r, c.Payload); err != nil {
			return c, err
		}
	}

	return c, nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readU16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}
