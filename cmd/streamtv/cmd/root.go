// Package cmd implements the CLI commands for streamtv.
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tgrayson/streamtv/internal/config"
	"github.com/tgrayson/streamtv/internal/observability"
	"github.com/tgrayson/streamtv/internal/version"
)

// cfgFile holds the config file path from the CLI flag.
var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "streamtv",
	Short:   "Virtual cable head-end for internet media catalogs",
	Version: version.Short(),
	Long: `streamtv presents internet media catalogs (YouTube, Archive.org, PBS,
Plex) as 24/7 linear TV channels.

Each channel plays a persistent schedule around the clock; clients tune
in mid-programme exactly like cable. Plex, Jellyfin, and Emby discover
it as an HDHomeRun tuner, and any IPTV player can use the M3U playlist
and XMLTV guide.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., ./configs, /etc/streamtv, $HOME/.streamtv)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
}

// loadConfig reads configuration and applies explicit CLI flag
// overrides. Flags are not bound to viper so the flag's default never
// shadows an env var or config file value.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if rootCmd.PersistentFlags().Changed("log-level") {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		cfg.Logging.Level = strings.ToLower(level)
	}
	if rootCmd.PersistentFlags().Changed("log-format") {
		format, _ := rootCmd.PersistentFlags().GetString("log-format")
		cfg.Logging.Format = strings.ToLower(format)
	}

	// "warning" is a common alias.
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}

	return cfg, nil
}

// setupLogging installs the redacting slog logger as the process default.
func setupLogging(cfg *config.Config) {
	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
}
