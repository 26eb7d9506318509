// ABOUTME: Update command for a one-shot database refresh
// ABOUTME: Fetches and validates the configured source without serving HTTP

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/needful-apps/Gunter/internal/config"
	"github.com/needful-apps/Gunter/internal/geodb"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Fetch the GeoIP database once and exit",
		Long: `Resolve the configured database source, download and validate the
database, and leave the artifact in the data directory for the next
serve run. Useful for priming a container image or cron-driven
refreshes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runUpdate(cmd, cfg)
		},
	}
}

func runUpdate(cmd *cobra.Command, cfg *config.Config) error {
	logger := newServiceLogger(cfg)

	src, err := geodb.ResolveSource(cfg.Database)
	if err != nil {
		logger.Error("no database source configured", slog.String("error", err.Error()))
		return err
	}
	logger.Info("database source resolved", sourceAttrs(src)...)

	if err := os.MkdirAll(cfg.Database.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	downloader := geodb.NewDownloader(geodb.DownloaderConfig{
		DataDir:   cfg.Database.DataDir,
		Timeout:   cfg.Database.FetchTimeout,
		UserAgent: "gunter/" + version,
		Logger:    logger,
	})

	store := geodb.NewStore()
	updater := geodb.NewUpdater(geodb.UpdaterConfig{
		Source:  src,
		Timeout: cfg.Database.FetchTimeout,
		Retry:   cfg.Database.Retry,
		Logger:  logger,
	}, downloader, store)

	outcome := updater.Refresh(cmd.Context())
	if outcome.Kind != geodb.OutcomeSuccess {
		return fmt.Errorf("database refresh failed: %s", outcome.Error)
	}

	handle, err := store.Current()
	if err != nil {
		return err
	}
	fmt.Printf("Database updated: %s\n", handle.Path)
	fmt.Printf("  Version: %s\n", handle.VersionTag)
	return nil
}
