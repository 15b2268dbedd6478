package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"driveindex/internal/config"
	"driveindex/internal/index"
	"driveindex/pkg/models"
)

var (
	indexDriverFlag string
	indexDSNFlag    string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect the SQL metadata index",
	Long: `Inspect the metadata index written by 'driveindex sync --index'.

Examples:
  driveindex index stats
  driveindex index stats --index-driver postgres --index-dsn postgres://localhost/drive
  driveindex index has 1AbCdEf 1XyZ`,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show counts and last sync per source",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, sourceNames, err := openIndexFromConfig()
		if err != nil {
			return err
		}
		defer store.Close()

		return printIndexStats(cmd.Context(), cmd.OutOrStdout(), store, sourceNames)
	},
}

var indexHasCmd = &cobra.Command{
	Use:   "has <file-id>...",
	Short: "Report whether files are in the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openIndexFromConfig()
		if err != nil {
			return err
		}
		defer store.Close()

		return printIndexed(cmd.Context(), cmd.OutOrStdout(), store, args)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexHasCmd)
	indexCmd.PersistentFlags().StringVar(&indexDriverFlag, "index-driver", "", "Index driver (sqlite, postgres)")
	indexCmd.PersistentFlags().StringVar(&indexDSNFlag, "index-dsn", "", "Index database path or connection URL")
}

// openIndexFromConfig opens the configured index and returns it with the
// configured source names.
func openIndexFromConfig() (*index.Store, []string, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Debug("No config file found, using defaults", zap.Error(err))

		cfg = config.GetDefaultConfig()
	}

	indexCfg := cfg.Index
	if indexDriverFlag != "" {
		indexCfg.Driver = indexDriverFlag
	}

	if indexDSNFlag != "" {
		indexCfg.DSN = indexDSNFlag
	}

	if indexCfg.Driver == "" {
		indexCfg.Driver = config.DefaultIndexDriver
	}

	store, err := openIndex(indexCfg)
	if err != nil {
		return nil, nil, err
	}

	return store, configuredSources(cfg), nil
}

func configuredSources(cfg *models.Config) []string {
	names := make([]string, 0, len(cfg.Sources))
	for name := range cfg.Sources {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func printIndexStats(ctx context.Context, w io.Writer, store *index.Store, sourceNames []string) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Shared drives: %d\n", stats.TotalContainers)
	fmt.Fprintf(w, "Files:         %d (%d bytes)\n", stats.TotalResources, stats.TotalBytes)

	if !stats.OldestModifiedSeen.IsZero() {
		fmt.Fprintf(w, "Modified:      %s .. %s\n",
			stats.OldestModifiedSeen.Format(time.DateOnly), stats.LastModifiedSeen.Format(time.DateOnly))
	}

	modes := make([]string, 0, len(stats.ResourcesByMode))
	for mode := range stats.ResourcesByMode {
		modes = append(modes, string(mode))
	}

	sort.Strings(modes)

	for _, mode := range modes {
		label := mode
		if label == "" {
			label = "none"
		}

		fmt.Fprintf(w, "  fetch %-8s %d\n", label+":", stats.ResourcesByMode[models.FetchMode(mode)])
	}

	// Sources present only in the index still get listed.
	seen := make(map[string]bool, len(sourceNames))
	for _, name := range sourceNames {
		seen[name] = true
	}

	for name := range stats.ResourcesBySource {
		if !seen[name] {
			sourceNames = append(sourceNames, name)
			seen[name] = true
		}
	}

	sort.Strings(sourceNames)

	for _, name := range sourceNames {
		state, err := store.GetSyncState(ctx, name)
		if err != nil {
			return err
		}

		if state == nil {
			fmt.Fprintf(w, "Source %s: never synced\n", name)

			continue
		}

		fmt.Fprintf(w, "Source %s: %d files indexed, last sync %s (%d shared drives, %d files)\n",
			name, stats.ResourcesBySource[name], state.LastSyncTime.Format(time.RFC3339),
			state.ContainerCount, state.ResourceCount)
	}

	return nil
}

func printIndexed(ctx context.Context, w io.Writer, store *index.Store, fileIDs []string) error {
	for _, id := range fileIDs {
		ok, err := store.HasResource(ctx, id)
		if err != nil {
			return err
		}

		status := "not indexed"
		if ok {
			status = "indexed"
		}

		fmt.Fprintf(w, "%s\t%s\n", id, status)
	}

	return nil
}
