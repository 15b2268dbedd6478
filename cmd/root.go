package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"driveindex/internal/config"
)

var (
	configDir   string
	debugMode   bool
	accessToken string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "driveindex",
	Short: "Enumerate Google Drive into a stream of drives and files",
	Long: `driveindex walks a Google Drive account (shared drives, their files,
and the files in My Drive) and emits one entity per drive and per file,
each file carrying a ready-to-use download or export URL.

Commands:
  sync        Enumerate a source into JSONL, the SQL index and/or a download directory
  connectors  List available connectors
  config      Manage configuration files`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		lg, err := newLogger(debugMode)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger = lg

		if configDir != "" {
			config.SetCustomConfigDir(configDir)
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Custom configuration directory")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&accessToken, "token", "", "OAuth access token (overrides "+tokenEnvVar+" and config)")
}

// newLogger builds a console logger on stderr; stdout is reserved for entity output.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = !debug

	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return cfg.Build()
}

func Execute() {
	if err := execute(rootCmd); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute runs cmd and flushes the logger whether or not it failed.
func execute(cmd *cobra.Command) error {
	defer func() {
		_ = logger.Sync()
	}()

	return cmd.Execute()
}
