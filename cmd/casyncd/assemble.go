package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/casyncd/casyncd/internal/assembler"
	"github.com/casyncd/casyncd/internal/cdcerr"
	"github.com/casyncd/casyncd/internal/index"
	"github.com/casyncd/casyncd/pkg/chunk"
)

func assembleCmd() *cobra.Command {
	var (
		storePath string
		seeds     []string
		noVerify  bool
	)

	cmd := &cobra.Command{
		Use:   "assemble <caibx> <output>",
		Short: "reconstruct a stream from a .caibx index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(args[0], args[1], storePath, seeds, !noVerify)
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "chunk store root (overrides --repo)")
	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "seed file that may contain some needed chunks")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip per-chunk id verification")

	return cmd
}

func runAssemble(indexPath, outputPath, storePath string, seeds []string, verify bool) error {
	const op = "cmd.assemble"
	ctx := context.Background()

	idx, err := loadIndex(indexPath)
	if err != nil {
		return err
	}

	root := storePath
	if root == "" {
		root = repoPath
	}
	st, err := openStore(root, encrypt)
	if err != nil {
		return err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return cdcerr.New(cdcerr.IoError, op, err)
	}
	defer out.Close()

	opts := assembler.Options{
		Seeds:      seeds,
		Verify:     verify,
		SeedConfig: chunk.DefaultConfig(),
	}
	if err := assembler.Assemble(ctx, &idx, st, out, opts); err != nil {
		return err
	}

	fmt.Printf("assembled %s: %s\n", outputPath, formatBytes(int64(idx.TotalSize)))
	return nil
}

func loadIndex(path string) (index.Index, error) {
	const op = "cmd.loadIndex"
	f, err := os.Open(path)
	if err != nil {
		return index.Index{}, cdcerr.New(cdcerr.IoError, op, err)
	}
	defer f.Close()
	return index.Decode(f)
}
