package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"driveindex/internal/config"
	"driveindex/internal/sources"
	syncer "driveindex/internal/sync"
	"driveindex/pkg/interfaces"
	"driveindex/pkg/models"
)

var (
	syncSourceName  string
	syncExclude     string
	syncStopAfter   int
	syncOutputPath  string
	syncIndex       bool
	syncIndexDriver string
	syncIndexDSN    string
	syncDownloadDir string
	syncConcurrency int
	syncDryRun      bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Enumerate a Drive source",
	Long: `Enumerate shared drives, the files in each shared drive, and the files in
My Drive, writing one entity per line to the JSONL output and optionally
into the SQL index and a download directory.

Examples:
  driveindex sync
  driveindex sync --exclude "My Drive/Archive/*,*.tmp"
  driveindex sync --stop-after 100 --output files.jsonl
  driveindex sync --index --index-driver postgres --index-dsn postgres://localhost/drive
  driveindex sync --download-dir ./downloads --concurrency 8
  driveindex sync --dry-run`,
	RunE: runSyncCommand,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncSourceName, "source", "", "Source to sync (defaults to the first enabled source)")
	syncCmd.Flags().StringVar(&syncExclude, "exclude", "", "Comma-separated glob patterns matched against file paths")
	syncCmd.Flags().IntVar(&syncStopAfter, "stop-after", 0, "Stop after this many files (0 = unlimited)")
	syncCmd.Flags().StringVarP(&syncOutputPath, "output", "o", "", "JSONL output file ('-' for stdout)")
	syncCmd.Flags().BoolVar(&syncIndex, "index", false, "Write entities to the SQL index")
	syncCmd.Flags().StringVar(&syncIndexDriver, "index-driver", "", "Index driver (sqlite, postgres)")
	syncCmd.Flags().StringVar(&syncIndexDSN, "index-dsn", "", "Index database path or connection URL")
	syncCmd.Flags().StringVar(&syncDownloadDir, "download-dir", "", "Download file contents into this directory")
	syncCmd.Flags().IntVar(&syncConcurrency, "concurrency", 0, "Parallel downloads")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Enumerate without writing any output")
}

func runSyncCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Debug("No config file found, using defaults", zap.Error(err))

		cfg = config.GetDefaultConfig()
	}

	sourceName := syncSourceName
	if sourceName == "" {
		enabled := getEnabledSources(cfg)
		if len(enabled) == 0 {
			return fmt.Errorf("no enabled sources found. Configure sources in your config file or use --source flag")
		}

		sourceName = enabled[0]
	}

	sourceConfig, exists := cfg.Sources[sourceName]
	if !exists {
		return fmt.Errorf("source '%s' is not configured", sourceName)
	}

	applySyncFlags(cmd, cfg, &sourceConfig)
	cfg.Sources[sourceName] = sourceConfig

	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ts, err := resolveTokenSource(ctx, cfg)
	if err != nil {
		return err
	}

	src, err := sources.DefaultRegistry().Create(sourceName, sourceConfig, ts, logger)
	if err != nil {
		return err
	}

	var sinkList []interfaces.Sink

	if !syncDryRun {
		sinkList, err = buildSinks(ctx, cfg, sourceName, src)
		if err != nil {
			return err
		}
	}

	logger.Info("Starting sync",
		zap.String("source", sourceName),
		zap.Strings("exclude_patterns", sourceConfig.Drive.ExcludePatterns),
		zap.Int("stop_after", sourceConfig.Drive.StopAfterFiles),
		zap.Int("sinks", len(sinkList)),
		zap.Bool("dry_run", syncDryRun))

	result, err := syncer.NewSyncer(logger).Run(ctx, src, sinkList, syncer.Options{DryRun: syncDryRun})

	fmt.Fprintf(os.Stderr, "Synced %s: %d shared drives, %d files in %s\n",
		result.Source, result.Containers, result.Resources, result.Duration.Round(time.Millisecond))
	printSinkSummary(os.Stderr, sinkList)

	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	return nil
}

// applySyncFlags overlays explicitly set command-line flags onto cfg.
func applySyncFlags(cmd *cobra.Command, cfg *models.Config, src *models.SourceConfig) {
	flags := cmd.Flags()

	if flags.Changed("exclude") {
		src.Drive.ExcludePatterns = config.ParsePatterns(syncExclude)
	}

	if flags.Changed("stop-after") {
		src.Drive.StopAfterFiles = syncStopAfter
	}

	if flags.Changed("output") {
		cfg.Output.JSONLPath = syncOutputPath
	}

	if syncIndex {
		cfg.Index.Enabled = true
	}

	if syncIndexDriver != "" {
		cfg.Index.Driver = syncIndexDriver
	}

	if syncIndexDSN != "" {
		cfg.Index.DSN = syncIndexDSN
	}

	if syncDownloadDir != "" {
		cfg.Download.Enabled = true
		cfg.Download.Dir = syncDownloadDir
	}

	if flags.Changed("concurrency") {
		cfg.Download.Concurrency = syncConcurrency
	}

	config.Normalize(cfg)
}
