package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dumpmate/dumpmate/internal/config"
	"github.com/dumpmate/dumpmate/internal/models"
	"github.com/dumpmate/dumpmate/internal/services/binary"
	"github.com/dumpmate/dumpmate/internal/services/dump"
)

var (
	dumpOut            string
	dumpCompress       bool
	dumpExcludeTables  []string
	dumpBinaryOverride string
)

var dumpCmd = &cobra.Command{
	Use:   "dump <id|alias>",
	Short: "Export a target database to a file",
	Long: `Export a target database with the cached mysqldump executable.
The destination defaults to a timestamped path under the dump root; pass
--out to choose one explicitly.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpOut, "out", "o", "", "destination file (defaults to the planned path)")
	dumpCmd.Flags().BoolVar(&dumpCompress, "compress", false, "gzip the dump stream (overrides the target default)")
	dumpCmd.Flags().StringSliceVar(&dumpExcludeTables, "exclude-table", nil, "table to exclude (repeatable)")
	dumpCmd.Flags().StringVar(&dumpBinaryOverride, "binary", "", "path to an existing mysqldump executable")
}

func runDump(cmd *cobra.Command, args []string) error {
	store := config.NewStore(log.Logger)
	path := configPath()

	cfg, err := store.Load(path)
	if err != nil {
		return err
	}

	target, ok := store.FindByIDOrAlias(cfg, args[0])
	if !ok {
		return fmt.Errorf("no target matches %q", args[0])
	}

	password, err := lookupPassword(target.PasswordRef)
	if err != nil {
		return err
	}

	compress := target.Compress
	if cmd.Flags().Changed("compress") {
		compress = dumpCompress
	}

	ctx := context.Background()
	resolver := binary.New(log.Logger, cacheRoot())
	exe, err := resolver.EnsureExecutable(ctx, runtime.GOOS, runtime.GOARCH, dumpBinaryOverride, downloadProgress())
	if err != nil {
		return err
	}

	destination := dumpOut
	if destination == "" {
		destination = dump.PlanPath(dumpRoot(cfg), target, compress, time.Now())
	}

	req := models.DumpRequest{
		Target:         target,
		Password:       password,
		Destination:    destination,
		Compress:       compress,
		ExcludeTables:  dumpExcludeTables,
		Flags:          dump.ResolveFlags(target.Flags, target.CustomFlags),
		ExecutablePath: exe,
	}

	result, err := dump.New(log.Logger).Run(ctx, req, func(written int64) {
		log.Info().Int64("bytes_written", written).Msg("dumping")
	})
	if err != nil {
		return err
	}

	// Remember the last dumped target for the next invocation.
	if cfg.Defaults == nil {
		cfg.Defaults = &models.Defaults{}
	}
	cfg.Defaults.LastSelectedID = target.ID
	if err := store.Save(cfg, path); err != nil {
		log.Warn().Err(err).Msg("could not persist last selected target")
	}

	fmt.Printf("Dump written to %s (%d bytes in %s)\n",
		result.Destination, result.SizeBytes, result.Duration.Round(time.Millisecond))
	return nil
}

// dumpRoot resolves the destination root: flag/env first, then the stored
// override, then the planner's temp-dir default.
func dumpRoot(cfg *models.ConfigFile) string {
	if root := viper.GetString("dump_root"); root != "" {
		return root
	}
	if cfg.Defaults != nil && cfg.Defaults.DumpRootOverride != "" {
		return cfg.Defaults.DumpRootOverride
	}
	return ""
}
