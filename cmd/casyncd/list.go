package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/casyncd/casyncd/internal/chunkid"
)

func listCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <caibx>",
		Short: "print the chunk table of a .caibx/.caidx index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit one JSON object per chunk instead of a table")
	return cmd
}

func runList(indexPath string, asJSON bool) error {
	idx, err := loadIndex(indexPath)
	if err != nil {
		return err
	}
	if err := idx.Validate(); err != nil {
		return err
	}

	if asJSON {
		// session_id tags this invocation's output for tooling that
		// correlates multiple `list --json` runs (e.g. diffing two
		// listings), not persisted anywhere.
		sessionID := uuid.NewString()
		for _, c := range idx.Chunks {
			fmt.Printf(
				`{"session_id":"%s","id":"%s","offset":%d,"size":%d,"compressed_size":%d}`+"\n",
				sessionID, chunkid.Hex(c.ID), c.Offset, c.Size, c.CompressedSize,
			)
		}
		return nil
	}

	fmt.Printf("%-64s %12s %12s %14s\n", "id", "offset", "size", "compressed")
	for _, c := range idx.Chunks {
		fmt.Printf("%-64s %12d %12d %14d\n", chunkid.Hex(c.ID), c.Offset, c.Size, c.CompressedSize)
	}
	fmt.Printf("\n%d chunks, total %s, ratio %.3f\n", len(idx.Chunks), formatBytes(int64(idx.TotalSize)), idx.CompressionRatio())
	return nil
}
