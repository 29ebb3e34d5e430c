package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dumpmate/dumpmate/internal/config"
	"github.com/dumpmate/dumpmate/internal/models"
	"github.com/dumpmate/dumpmate/internal/secret"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage configured database targets",
}

var (
	targetName     string
	targetAlias    string
	targetEnv      string
	targetHost     string
	targetPort     int
	targetUser     string
	targetPassword string
	targetFlags    []string
	targetCustom   []string
	targetCompress bool
)

var targetsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a database target",
	RunE:  addTarget,
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured targets",
	RunE:  listTargets,
}

var targetsRemoveCmd = &cobra.Command{
	Use:   "remove <id|alias>",
	Short: "Remove a target",
	Args:  cobra.ExactArgs(1),
	RunE:  removeTarget,
}

func init() {
	targetsAddCmd.Flags().StringVar(&targetName, "name", "", "database name (required)")
	targetsAddCmd.Flags().StringVar(&targetAlias, "alias", "", "short alias for the target")
	targetsAddCmd.Flags().StringVar(&targetEnv, "env", "local", "environment label (local, staging, prod, ...)")
	targetsAddCmd.Flags().StringVar(&targetHost, "host", "localhost", "database host")
	targetsAddCmd.Flags().IntVar(&targetPort, "port", 0, "database port (omitted when 0)")
	targetsAddCmd.Flags().StringVar(&targetUser, "user", "root", "database user")
	targetsAddCmd.Flags().StringVar(&targetPassword, "password", "", "database password (stored in the local secret vault)")
	targetsAddCmd.Flags().StringSliceVar(&targetFlags, "flag", []string{"single-transaction", "quick"}, "exporter flag ids from the catalog")
	targetsAddCmd.Flags().StringSliceVar(&targetCustom, "custom-flag", nil, "extra exporter flags passed verbatim")
	targetsAddCmd.Flags().BoolVar(&targetCompress, "compress", false, "gzip dumps of this target by default")
	_ = targetsAddCmd.MarkFlagRequired("name")

	targetsCmd.AddCommand(targetsAddCmd)
	targetsCmd.AddCommand(targetsListCmd)
	targetsCmd.AddCommand(targetsRemoveCmd)
}

func addTarget(cmd *cobra.Command, args []string) error {
	store := config.NewStore(log.Logger)
	path := configPath()

	cfg, err := store.Load(path)
	if err != nil {
		return err
	}

	entry := models.Target{
		Type:        "mysql",
		Environment: targetEnv,
		Name:        targetName,
		Alias:       targetAlias,
		Host:        targetHost,
		Port:        targetPort,
		Username:    targetUser,
		Flags:       targetFlags,
		CustomFlags: targetCustom,
		Compress:    targetCompress,
	}

	// Reuse the existing entry (and its secret ref) when the alias or name
	// already exists, so add doubles as update.
	for _, existing := range cfg.Databases {
		if (targetAlias != "" && existing.Alias == targetAlias) || existing.Name == targetName {
			entry.ID = existing.ID
			entry.PasswordRef = existing.PasswordRef
			break
		}
	}

	if targetPassword != "" {
		ref, err := secretRegistry().Save(targetPassword, entry.PasswordRef)
		if err != nil {
			return fmt.Errorf("storing password: %w", err)
		}
		entry.PasswordRef = ref
	}

	stored := store.Upsert(cfg, entry)
	if err := store.Save(cfg, path); err != nil {
		return err
	}

	log.Info().
		Str("id", stored.ID).
		Str("name", stored.Name).
		Str("environment", stored.Environment).
		Msg("target saved")
	return nil
}

func listTargets(cmd *cobra.Command, args []string) error {
	store := config.NewStore(log.Logger)
	cfg, err := store.Load(configPath())
	if err != nil {
		return err
	}

	if len(cfg.Databases) == 0 {
		fmt.Println("No targets configured. Add one with 'dumpmate targets add'.")
		return nil
	}

	for _, target := range cfg.Databases {
		line := fmt.Sprintf("%s  %s/%s  %s@%s", target.ID, target.Environment, target.Name, target.Username, target.Host)
		if target.Port != 0 {
			line += fmt.Sprintf(":%d", target.Port)
		}
		if target.Alias != "" {
			line += fmt.Sprintf("  (alias: %s)", target.Alias)
		}
		fmt.Println(line)
	}
	return nil
}

func removeTarget(cmd *cobra.Command, args []string) error {
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

	if target.PasswordRef != "" {
		if err := secretRegistry().Delete(target.PasswordRef); err != nil && !errors.Is(err, secret.ErrNotFound) {
			log.Warn().Err(err).Msg("could not delete stored password")
		}
	}

	store.Delete(cfg, target.ID)
	if err := store.Save(cfg, path); err != nil {
		return err
	}

	log.Info().Str("id", target.ID).Str("name", target.Name).Msg("target removed")
	return nil
}
