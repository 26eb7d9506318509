// ABOUTME: Serve command for running the Gunter HTTP service
// ABOUTME: Wires database provisioning, WHOIS, and API with graceful shutdown

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/needful-apps/Gunter/internal/api"
	"github.com/needful-apps/Gunter/internal/config"
	"github.com/needful-apps/Gunter/internal/geodb"
	"github.com/needful-apps/Gunter/internal/observability"
	"github.com/needful-apps/Gunter/internal/whois"
)

func newServeCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Gunter HTTP service",
		Long: `Start the Gunter daemon: provision the GeoIP database from the
configured source, keep it refreshed on a schedule, and serve the
geolocation and WHOIS API over HTTP.

Configuration comes from the config file and GUNTER_* environment
variables; flags override both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if httpAddr != "" {
				cfg.HTTP.Addr = httpAddr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (default from config, :6600)")

	return cmd
}

// loadConfig resolves the effective configuration for a command run.
// An explicit --config file must exist; the default path is optional.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if p := config.DefaultConfigPath(); fileExists(p) {
			path = p
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// sourceAttrs describes a resolved source for logging without leaking
// credentials.
func sourceAttrs(src geodb.Source) []any {
	attrs := []any{slog.String("kind", string(src.Kind))}
	switch {
	case src.URL != "":
		attrs = append(attrs, slog.String("url", observability.RedactURL(src.URL)))
	case src.Path != "":
		attrs = append(attrs, slog.String("path", src.Path))
	}
	return attrs
}

func newServiceLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "gunter",
		Version:     version,
	}, os.Stdout)
	slog.SetDefault(logger)
	return logger
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newServiceLogger(cfg)

	logger.Info("starting gunter",
		slog.String("version", version),
		slog.String("data_dir", cfg.Database.DataDir),
		slog.String("http_addr", cfg.HTTP.Addr),
	)

	// Resolve the database source. Without one the service is useless,
	// so this is a startup failure, not a degraded mode.
	src, err := geodb.ResolveSource(cfg.Database)
	if err != nil {
		logger.Error("no database source configured", slog.String("error", err.Error()))
		return err
	}
	logger.Info("database source resolved", sourceAttrs(src)...)

	if err := os.MkdirAll(cfg.Database.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// Tracing.
	tracerProvider, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		Enabled:       cfg.Tracing.Enabled,
		ServiceName:   "gunter",
		Version:       version,
		Endpoint:      cfg.Tracing.Endpoint,
		Insecure:      cfg.Tracing.Insecure,
		SamplingRatio: cfg.Tracing.SamplingRatio,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", slog.String("error", err.Error()))
		}
	}()

	metrics := observability.NewMetrics()

	// Database store and refresh worker.
	store := geodb.NewStore()
	downloader := geodb.NewDownloader(geodb.DownloaderConfig{
		DataDir:   cfg.Database.DataDir,
		Timeout:   cfg.Database.FetchTimeout,
		UserAgent: "gunter/" + version,
		Logger:    logger,
	})

	// Serve from a previously downloaded database while the first
	// refresh runs. Local files are loaded by the refresh itself.
	if src.Kind != geodb.SourceLocalFile {
		if handle, ok := downloader.LoadCached(src); ok {
			store.Install(handle)
			downloader.Prune(handle.Path)
			logger.Info("loaded cached database",
				slog.String("path", handle.Path),
				slog.String("version_tag", handle.VersionTag),
			)
		} else {
			downloader.Prune()
		}
	}

	updater := geodb.NewUpdater(geodb.UpdaterConfig{
		Source:   src,
		Interval: cfg.Database.UpdateInterval,
		Timeout:  cfg.Database.FetchTimeout,
		Retry:    cfg.Database.Retry,
		Logger:   logger,
		Metrics:  metrics,
	}, downloader, store)
	if err := updater.Start(ctx); err != nil {
		return fmt.Errorf("starting database updater: %w", err)
	}
	defer updater.Stop()

	// WHOIS service with a persistent response cache.
	whoisCache, err := whois.NewCache(whois.CacheConfig{
		Path: filepath.Join(cfg.Database.DataDir, "whois-cache"),
		TTL:  cfg.Whois.CacheTTL,
	})
	if err != nil {
		logger.Warn("whois cache unavailable, continuing without caching",
			slog.String("error", err.Error()),
		)
		whoisCache = nil
	} else {
		defer whoisCache.Close()
	}
	whoisService := whois.NewService(whois.ServiceConfig{
		Timeout: cfg.Whois.Timeout,
		Logger:  logger,
		Metrics: metrics,
	}, whoisCache)

	// HTTP API.
	handler := api.NewHandler(api.HandlerConfig{
		Store:        store,
		Updater:      updater,
		Whois:        whoisService,
		Metrics:      metrics,
		DefaultLang:  cfg.API.DefaultLang,
		EnableStatus: cfg.API.EnableStatus,
		EnableDocs:   cfg.API.EnableDocs,
		DataDir:      cfg.Database.DataDir,
		Logger:       logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	var root http.Handler = mux
	root = api.LoggingMiddleware(logger)(root)
	root = api.TracingMiddleware(root)
	root = observability.CorrelationMiddleware(root)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", slog.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("gunter ready, waiting for requests")
	select {
	case err := <-serverErr:
		logger.Error("HTTP server error", slog.String("error", err.Error()))
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", slog.String("error", err.Error()))
	}

	updater.Stop()

	logger.Info("gunter stopped")
	return nil
}
