package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dumpmate/dumpmate/internal/services/binary"
	"github.com/dumpmate/dumpmate/internal/services/fetch"
)

var binaryOverride string

var binaryCmd = &cobra.Command{
	Use:   "binary",
	Short: "Manage the cached exporter binary",
}

var binaryEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Download and cache the exporter for this platform",
	Long:  `Resolve the pinned mysqldump release for this platform: download, verify the checksum, extract and cache the executable. A cached binary is reused as-is.`,
	RunE:  ensureBinary,
}

func init() {
	binaryEnsureCmd.Flags().StringVar(&binaryOverride, "override", "", "use an existing mysqldump executable instead of downloading")
	binaryCmd.AddCommand(binaryEnsureCmd)
}

func ensureBinary(cmd *cobra.Command, args []string) error {
	resolver := binary.New(log.Logger, cacheRoot())
	path, err := resolver.EnsureExecutable(context.Background(), runtime.GOOS, runtime.GOARCH, binaryOverride, downloadProgress())
	if err != nil {
		return err
	}

	fmt.Printf("Exporter ready at %s\n", path)
	return nil
}

// downloadProgress logs download progress at most once per ten percent.
func downloadProgress() fetch.ProgressFunc {
	var lastDecile int64 = -1
	return func(received, total int64) {
		if total <= 0 {
			return
		}
		decile := received * 10 / total
		if decile > lastDecile {
			lastDecile = decile
			log.Info().
				Int64("received", received).
				Int64("total", total).
				Msgf("downloading exporter: %d%%", decile*10)
		}
	}
}
