package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/casyncd/casyncd/internal/assembler"
)

func verifyCmd() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "verify <caibx>",
		Short: "validate a .caibx index and every chunk it references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], storePath)
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "chunk store root (overrides --repo)")
	return cmd
}

func runVerify(indexPath, storePath string) error {
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

	if err := assembler.Verify(ctx, &idx, st); err != nil {
		return err
	}

	fmt.Printf("%s: OK (%d chunks, %s)\n", indexPath, len(idx.Chunks), formatBytes(int64(idx.TotalSize)))
	return nil
}
