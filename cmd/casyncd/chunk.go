package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/chunker"
	"github.com/casyncd/casyncd/internal/chunkid"
	"github.com/casyncd/casyncd/internal/codec"
	"github.com/casyncd/casyncd/internal/index"
	"github.com/casyncd/casyncd/internal/store"
	"github.com/casyncd/casyncd/pkg/chunk"
)

func chunkCmd() *cobra.Command {
	var (
		minSize     uint64
		avgSize     uint64
		maxSize     uint64
		compression string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "chunk <input>",
		Short: "split a file into content-defined chunks and write a .caibx index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(args[0], minSize, avgSize, maxSize, compression, output)
		},
	}

	cmd.Flags().Uint64Var(&minSize, "min", 16*1024, "minimum chunk size in bytes")
	cmd.Flags().Uint64Var(&avgSize, "avg", 64*1024, "target average chunk size in bytes")
	cmd.Flags().Uint64Var(&maxSize, "max", 256*1024, "maximum chunk size in bytes")
	cmd.Flags().StringVar(&compression, "compression", "zstd", "payload compression: zstd|none")
	cmd.Flags().StringVar(&output, "output", "", "output .caibx path (default: <input>.caibx)")

	return cmd
}

func runChunk(inputPath string, minSize, avgSize, maxSize uint64, compression, output string) error {
	const op = "cmd.chunk"
	ctx := context.Background()

	comp, err := chunk.ParseCompression(compression)
	if err != nil {
		return err
	}
	cfg := chunk.Config{MinSize: minSize, AvgSize: avgSize, MaxSize: maxSize, Compression: comp, Level: 1}
	if err := cfg.Validate(); err != nil {
		return err
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	defer f.Close()

	cc, err := codec.New(comp, cfg.Level)
	if err != nil {
		return err
	}
	defer cc.Close()

	var st store.ChunkStore
	if repoPath != "" || configPath != "" {
		st, err = openStore(repoPath, encrypt)
		if err != nil {
			return err
		}
	}

	c, err := chunker.New(f, cfg)
	if err != nil {
		return err
	}

	var descs []index.ChunkDescriptor
	for {
		offset, data, err := c.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		id := chunkid.Compute(data)
		frame, err := cc.Encode(data)
		if err != nil {
			return err
		}

		if st != nil {
			if err := st.Put(ctx, id, frame); err != nil {
				return err
			}
		}

		checksum := sha256.Sum256(data)
		descs = append(descs, index.ChunkDescriptor{
			ID:             id,
			Size:           uint64(len(data)),
			CompressedSize: uint32(len(frame)),
			Offset:         offset,
			Checksum:       checksum,
			Payload:        frame,
		})

		if verbose {
			fmt.Printf("chunk offset=%d size=%d id=%s\n", offset, len(data), chunkid.Hex(id))
		}
	}

	idx := index.New(descs, index.Caibx, time.Now())

	policy := index.WithPayloads
	if st != nil {
		policy = index.PayloadsExternal
	}

	if output == "" {
		output = index.FilenameFor(inputPath, index.Caibx)
	}
	out, err := os.Create(output)
	if err != nil {
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	defer out.Close()

	if err := idx.Encode(out, policy); err != nil {
		return err
	}

	fmt.Printf("wrote %s: %d chunks, %s\n", output, len(descs), formatBytes(int64(idx.TotalSize)))
	return nil
}
