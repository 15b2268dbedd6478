package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"driveindex/internal/config"
	"driveindex/internal/index"
	"driveindex/internal/sinks"
	syncer "driveindex/internal/sync"
	"driveindex/pkg/interfaces"
	"driveindex/pkg/models"
)

// getEnabledSources returns enabled source names in sorted order.
func getEnabledSources(cfg *models.Config) []string {
	var enabledSources []string

	for srcName, sourceConfig := range cfg.Sources {
		if sourceConfig.Enabled {
			enabledSources = append(enabledSources, srcName)
		}
	}

	sort.Strings(enabledSources)

	return enabledSources
}

// buildSinks creates the sinks enabled in cfg. On failure, sinks created so
// far are closed.
func buildSinks(ctx context.Context, cfg *models.Config, sourceName string, src interfaces.Source) ([]interfaces.Sink, error) {
	var out []interfaces.Sink

	fail := func(err error) ([]interfaces.Sink, error) {
		_ = syncer.CloseSinks(out)

		return nil, err
	}

	if cfg.Output.JSONLPath != "" {
		jsonl, err := sinks.NewJSONLSink(cfg.Output.JSONLPath)
		if err != nil {
			return fail(err)
		}

		out = append(out, jsonl)
	}

	if cfg.Index.Enabled {
		store, err := openIndex(cfg.Index)
		if err != nil {
			return fail(err)
		}

		out = append(out, sinks.NewIndexSink(store, sourceName))
	}

	if cfg.Download.Enabled {
		httpSource, ok := src.(interface{ HTTPClient() *http.Client })
		if !ok || httpSource.HTTPClient() == nil {
			return fail(fmt.Errorf("source '%s' does not support downloads", sourceName))
		}

		download, err := sinks.NewDownloadSink(ctx, httpSource.HTTPClient(), sinks.DownloadOptions{
			Dir:            cfg.Download.Dir,
			Concurrency:    cfg.Download.Concurrency,
			VerifyChecksum: cfg.Download.VerifyChecksum,
			Logger:         logger,
		})
		if err != nil {
			return fail(err)
		}

		out = append(out, download)
	}

	return out, nil
}

// printSinkSummary reports per-sink totals after a run.
func printSinkSummary(w io.Writer, sinkList []interfaces.Sink) {
	for _, sink := range sinkList {
		switch s := sink.(type) {
		case *sinks.JSONLSink:
			fmt.Fprintf(w, "  jsonl: %d lines\n", s.Count())
		case *sinks.DownloadSink:
			stats := s.Stats()
			fmt.Fprintf(w, "  download: %d files (%d bytes), %d failed\n", stats.Files, stats.Bytes, stats.Failed)
		}
	}
}

// openIndex opens the configured index; an empty sqlite DSN maps to
// index.db in the config directory.
func openIndex(cfg models.IndexConfig) (*index.Store, error) {
	dsn := cfg.DSN

	if dsn == "" && cfg.Driver != string(index.DialectPostgres) {
		configDir, err := config.GetConfigDir()
		if err != nil {
			return nil, err
		}

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		dsn = filepath.Join(configDir, "index.db")
	}

	logger.Debug("Opening index", zap.String("driver", cfg.Driver), zap.String("dsn", redactDSN(cfg.Driver, dsn)))

	store, err := index.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	return store, nil
}

// redactDSN hides credentials in postgres connection strings.
func redactDSN(driver, dsn string) string {
	if driver == string(index.DialectPostgres) {
		return "[redacted]"
	}

	return dsn
}
