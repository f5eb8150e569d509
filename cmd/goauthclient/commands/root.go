// Package commands implements the goauthclient CLI.
package commands

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goAuthClient/internal/logger"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
)

var (
	configPath string
	cfg        *Config
	log        *slog.Logger
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "goauthclient",
	Short: "Session-aware API client with single-flight credential refresh",
	Long: `goauthclient drives the goAuthClient library from the command line.

  serve     run the in-process test backend
  request   log in and issue one request through the client
  loadtest  hammer the backend with concurrent calls while access tokens expire

Configuration is read from --config, GOAUTHCLIENT_* environment variables and
built-in defaults, in that order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format, _ = cmd.Flags().GetString("log-format")
		}

		l, closer, err := logger.New(loaded.Logging)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg, log, logCloser = loaded, l, closer
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "goauthclient %s (%s)\n", Version, Commit)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(loadtestCmd)
}
