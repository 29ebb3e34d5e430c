package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dumpmate/dumpmate/internal/config"
	"github.com/dumpmate/dumpmate/internal/secret"
	"github.com/dumpmate/dumpmate/internal/services/binary"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "dumpmate",
	Short: "Download, verify and drive mysqldump to export databases",
	Long: `dumpmate manages everything around a mysqldump export:
  - downloads a pinned mysqldump release for your platform and verifies it
  - caches the executable for reuse
  - stores connection targets with credentials in a local secret store
  - probes connectivity and streams (optionally gzipped) dumps to disk`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (defaults to the user config directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().String("cache-dir", "", "directory for cached exporter binaries")
	rootCmd.PersistentFlags().String("dump-root", "", "root directory for planned dump paths")

	viper.SetEnvPrefix("DUMPMATE")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	_ = viper.BindPFlag("dump_root", rootCmd.PersistentFlags().Lookup("dump-root"))
	_ = viper.BindEnv("config")

	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(binaryCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// configPath resolves the config file location from the flag, the
// environment, or the platform default.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	if env := viper.GetString("config"); env != "" {
		return env
	}
	return config.DefaultPath()
}

// cacheRoot resolves the exporter cache directory.
func cacheRoot() string {
	if dir := viper.GetString("cache_dir"); dir != "" {
		return dir
	}
	return binary.DefaultCacheRoot()
}

// secretRegistry wires the secret backends: the encrypted file vault is
// the default, the in-memory store exists for refs produced in tests.
func secretRegistry() *secret.Registry {
	registry := secret.NewRegistry(secret.FileKind, secret.NewFileStore(filepath.Dir(configPath())))
	registry.Register(secret.MemoryKind, secret.NewMemoryStore())
	return registry
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
