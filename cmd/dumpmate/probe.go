package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dumpmate/dumpmate/internal/config"
	"github.com/dumpmate/dumpmate/internal/services/binary"
	"github.com/dumpmate/dumpmate/internal/services/probe"
)

var probeBinaryOverride string

var probeCmd = &cobra.Command{
	Use:   "probe <id|alias>",
	Short: "Check connectivity and credentials for a target",
	Long:  `Run the exporter in structure-only mode against a target to verify that the host is reachable and the credentials work. No data is transferred.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&probeBinaryOverride, "binary", "", "path to an existing mysqldump executable")
}

func runProbe(cmd *cobra.Command, args []string) error {
	store := config.NewStore(log.Logger)
	cfg, err := store.Load(configPath())
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

	ctx := context.Background()
	resolver := binary.New(log.Logger, cacheRoot())
	exe, err := resolver.EnsureExecutable(ctx, runtime.GOOS, runtime.GOARCH, probeBinaryOverride, downloadProgress())
	if err != nil {
		return err
	}

	result := probe.New(log.Logger).Probe(ctx, target, password, exe)
	if result.OK {
		fmt.Printf("Connection to %s (%s@%s) OK\n", target.Name, target.Username, target.Host)
		return nil
	}

	fmt.Printf("Connection to %s failed: %s\n", target.Name, result.Message)
	return nil
}

// lookupPassword resolves a target's stored credential, treating an unset
// reference as an empty password.
func lookupPassword(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	password, err := secretRegistry().Resolve(ref)
	if err != nil {
		return "", fmt.Errorf("resolving stored password: %w", err)
	}
	return password, nil
}
