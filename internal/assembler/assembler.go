// Package assembler reconstructs an original stream from an Index and a
// ChunkStore, optionally accelerating reads from local seed files that
// may already hold some of the needed chunks. Adapted from the teacher's
// internal/restore.Restorer, which copied whole files out of a CAS by
// hash; here reconstruction walks an Index's chunk table in offset
// order and may source any individual chunk from a seed file instead of
// the store.
package assembler

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/chunker"
	"github.com/casyncd/casyncd/internal/chunkid"
	"github.com/casyncd/casyncd/internal/codec"
	"github.com/casyncd/casyncd/internal/index"
	"github.com/casyncd/casyncd/internal/store"
	"github.com/casyncd/casyncd/pkg/chunk"
)

// Options controls Assemble's behavior.
type Options struct {
	// Seeds are paths to existing files that may already contain chunks
	// the target stream needs. Each seed is scanned once and its own
	// chunk boundaries computed with cfg so ranges can be matched by id.
	Seeds []string
	// Verify recomputes each chunk's id after decoding and fails on
	// mismatch. The zero value leaves verification off; the CLI sets it
	// unless --no-verify is given.
	Verify bool
	// Force proceeds even if the index's own checksum fails validation.
	Force bool
	// SeedConfig is the chunk.Config used to re-chunk seed files. It
	// must match the Config the target stream was chunked with, or seed
	// chunk ids will simply never match and every chunk falls through to
	// the store.
	SeedConfig chunk.Config
}

// seedIndex maps a chunk id to the bytes of a matching range found in one
// of the seed files, built once per Assemble call.
type seedIndex struct {
	data map[[32]byte][]byte
}

func buildSeedIndex(seeds []string, cfg chunk.Config) (*seedIndex, error) {
	si := &seedIndex{data: make(map[[32]byte][]byte)}
	if len(seeds) == 0 {
		return si, nil
	}

	// Importing internal/chunker here would create an import cycle only
	// if chunker imported assembler, which it doesn't; kept as a plain
	// dependency.
	for _, path := range seeds {
		f, err := os.Open(path)
		if err != nil {
			continue // a missing/unreadable seed is not fatal, just unused
		}
		chunks, err := chunker.SplitAll(f, cfg)
		f.Close()
		if err != nil {
			continue
		}
		for _, c := range chunks {
			id := chunkid.Compute(c.Uncompressed)
			if _, ok := si.data[id]; !ok {
				si.data[id] = c.Uncompressed
			}
		}
	}
	return si, nil
}

// Assemble writes the stream described by idx to w, per spec §4.7.
func Assemble(ctx context.Context, idx *index.Index, st store.ChunkStore, w io.Writer, opts Options) error {
	const op = "assembler.Assemble"

	if err := idx.Validate(); err != nil && !opts.Force {
		return err
	}

	seeds, err := buildSeedIndex(opts.Seeds, opts.SeedConfig)
	if err != nil {
		return err
	}

	verify := opts.Verify

	for _, desc := range idx.Chunks {
		if err := ctx.Err(); err != nil {
			return cdcerr.WithChunk(cdcerr.Cancelled, op, chunkid.Hex(desc.ID), int64(desc.Offset), err)
		}

		data, err := resolveChunk(ctx, desc, st, seeds)
		if err != nil {
			return err
		}

		if verify {
			gotID := chunkid.Compute(data)
			if gotID != desc.ID {
				return cdcerr.WithChunk(cdcerr.ChunkIdMismatch, op, chunkid.Hex(desc.ID), int64(desc.Offset), nil)
			}
		}

		if _, err := w.Write(data); err != nil {
			return cdcerr.WithChunk(cdcerr.IoError, op, chunkid.Hex(desc.ID), int64(desc.Offset), err)
		}
	}

	return nil
}

// resolveChunk tries a seed match first, then the index's own embedded
// payload, then falls back to the ChunkStore.
func resolveChunk(ctx context.Context, desc index.ChunkDescriptor, st store.ChunkStore, seeds *seedIndex) ([]byte, error) {
	const op = "assembler.resolveChunk"

	if data, ok := seeds.data[desc.ID]; ok {
		return data, nil
	}

	var frame []byte
	if len(desc.Payload) > 0 {
		frame = desc.Payload
	} else {
		var err error
		frame, err = st.Get(ctx, desc.ID)
		if err != nil {
			return nil, err
		}
	}

	cc, err := codec.New(chunk.CompressionNone, 0)
	if err != nil {
		return nil, cdcerr.New(cdcerr.ConfigError, op, err)
	}
	defer cc.Close()

	data, err := cc.Decode(frame)
	if err != nil {
		return nil, cdcerr.WithChunk(cdcerr.DecompressionFailed, op, chunkid.Hex(desc.ID), int64(desc.Offset), err)
	}
	return data, nil
}

// Verify checks an Index and every one of its chunks can be resolved and
// (if embedded or sourced from the store) matches its recorded id,
// without writing output — used by "casyncd verify".
func Verify(ctx context.Context, idx *index.Index, st store.ChunkStore) error {
	var buf bytes.Buffer
	return Assemble(ctx, idx, st, &buf, Options{Verify: true})
}
