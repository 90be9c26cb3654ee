// Command casyncd chunks files into content-defined chunks, writes
// .caibx/.caidx indexes, and reassembles streams from them. Adapted from
// the teacher's cmd/snapsync CLI skeleton (persistent --repo/--verbose
// flags, cobra subcommand layout, formatBytes helper) narrowed to the
// chunk/assemble/verify/list surface this engine exposes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/casyncd/casyncd/internal/cdcerr"
)

var (
	version = "0.1.0"

	repoPath   string
	verbose    bool
	encrypt    bool
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "casyncd",
		Short:   "casyncd — content-defined chunking and indexing engine",
		Version: version,
	}

	rootCmd.PersistentFlags().StringVarP(&repoPath, "repo", "r", "", "chunk store root (local path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&encrypt, "encrypt", false, "wrap the chunk store in AES-256-GCM encryption (passphrase via $CASYNCD_PASSPHRASE or a terminal prompt)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "repository config file (YAML); overrides --repo/--encrypt for store selection")

	rootCmd.AddCommand(chunkCmd())
	rootCmd.AddCommand(assembleCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(listCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a cdcerr.Kind to the exit code table in spec §6.
func exitCodeFor(err error) int {
	switch cdcerr.KindOf(err) {
	case cdcerr.ConfigError, cdcerr.UnsupportedVersion, cdcerr.UnsupportedCompression:
		return 2
	case cdcerr.IoError:
		return 3
	case cdcerr.InvalidMagic, cdcerr.IndexChecksumMismatch, cdcerr.ChunkIdMismatch, cdcerr.DecompressionFailed:
		return 4
	case cdcerr.NotFound:
		return 5
	case cdcerr.Cancelled:
		return 130
	default:
		return 1
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
