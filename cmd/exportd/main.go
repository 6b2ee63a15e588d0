package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adaeze-okafor/stats-exporter/internal/common"
	"github.com/adaeze-okafor/stats-exporter/internal/dataset"
	"github.com/adaeze-okafor/stats-exporter/internal/export"
	"github.com/adaeze-okafor/stats-exporter/internal/render"
	"github.com/adaeze-okafor/stats-exporter/internal/server"
)

func main() {
	loadDotEnv()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := export.NewRegistry()
	for format, exp := range render.Suite(logger) {
		if err := registry.Register(format, exp); err != nil {
			logger.Error("register exporter", "format", format, "error", err)
			os.Exit(1)
		}
	}

	var themes *export.Themes
	if cfg.Export.ThemesPath != "" {
		t, err := export.LoadThemes(cfg.Export.ThemesPath)
		if err != nil {
			logger.Error("load themes", "path", cfg.Export.ThemesPath, "error", err)
			os.Exit(1)
		}
		themes = t
		logger.Info("themes loaded", "path", cfg.Export.ThemesPath, "names", t.Names())
	}

	manager, err := export.NewManager(registry, logger,
		export.WithOutputDir(cfg.Export.OutputDir),
		export.WithMaxConcurrentJobs(cfg.Export.MaxConcurrentJobs),
		export.WithMaxPendingJobs(cfg.Export.MaxPendingJobs),
		export.WithJobTimeout(cfg.Export.JobTimeout),
		export.WithThemes(themes),
	)
	if err != nil {
		logger.Error("create export manager", "error", err)
		os.Exit(1)
	}

	catalog, dbs := buildCatalog(ctx, cfg, logger)
	defer func() {
		for _, db := range dbs {
			_ = db.Close()
		}
	}()
	if err := catalog.Refresh(ctx); err != nil {
		logger.Warn("initial catalog refresh incomplete", "error", err)
	}
	logger.Info("dataset catalog ready", "datasets", catalog.Len())

	if cfg.Data.WatchEnabled {
		startWatchLoop(ctx, cfg, catalog, logger)
	}
	startRetentionSweeper(ctx, cfg, manager, logger)

	srv := server.NewServer(manager, catalog, logger,
		server.WithSubmitLimit(cfg.Server.SubmitRPS, cfg.Server.SubmitBurst),
	)
	srv.BaseURL = cfg.Server.BaseURL

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("exportd listening", "addr", cfg.Server.HTTPAddr, "output_dir", cfg.Export.OutputDir)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	manager.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
}

// buildCatalog wires the filesystem source plus optional SQL sources. The
// caller owns the returned DB handles.
func buildCatalog(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*dataset.Catalog, []interface{ Close() error }) {
	var sources []dataset.Source
	var dbs []interface{ Close() error }

	if err := os.MkdirAll(cfg.Data.Dir, 0o755); err != nil {
		logger.Error("mkdir data dir", "dir", cfg.Data.Dir, "error", err)
		os.Exit(1)
	}
	sources = append(sources, dataset.NewDirSource(cfg.Data.Dir, logger))

	if cfg.Data.SQLCatalogPath != "" {
		queries, err := dataset.LoadQueryCatalog(cfg.Data.SQLCatalogPath)
		if err != nil {
			logger.Error("load sql catalog", "path", cfg.Data.SQLCatalogPath, "error", err)
			os.Exit(1)
		}
		if cfg.Data.WarehouseDSN != "" {
			db, err := dataset.OpenWarehouse(ctx, dataset.PoolConfig{
				DSN:             cfg.Data.WarehouseDSN,
				MaxConns:        cfg.Data.MaxConns,
				MinConns:        cfg.Data.MinConns,
				MaxConnLifetime: cfg.Data.MaxConnLifetime,
				MaxConnIdleTime: cfg.Data.MaxConnIdleTime,
				DialTimeout:     cfg.Data.DialTimeout,
			}, logger)
			if err != nil {
				logger.Error("open warehouse", "error", err)
				os.Exit(1)
			}
			dbs = append(dbs, db)
			sources = append(sources, dataset.NewSQLSource(db, queries, logger))
		}
		if cfg.Data.CacheDSN != "" {
			db, err := dataset.OpenCache(cfg.Data.CacheDSN)
			if err != nil {
				logger.Error("open cache db", "error", err)
				os.Exit(1)
			}
			dbs = append(dbs, db)
			sources = append(sources, dataset.NewSQLSource(db, queries, logger))
		}
	}

	return dataset.NewCatalog(logger, sources...), dbs
}

// startWatchLoop refreshes the catalog whenever bundle files change on disk.
func startWatchLoop(ctx context.Context, cfg *common.Config, catalog *dataset.Catalog, logger *slog.Logger) {
	changes, watchErrs, err := dataset.StartWatcher(ctx, dataset.WatchConfig{
		Root:     cfg.Data.Dir,
		Debounce: cfg.Data.WatchDebounce,
	}, logger)
	if err != nil {
		logger.Warn("dataset watcher disabled", "error", err)
		return
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case path, ok := <-changes:
				if !ok {
					return
				}
				logger.Info("dataset change detected", "path", path)
				if err := catalog.Refresh(ctx); err != nil {
					logger.Warn("catalog refresh failed", "error", err)
				}
			case err, ok := <-watchErrs:
				if !ok {
					return
				}
				logger.Warn("dataset watcher error", "error", err)
			}
		}
	}()
}

// startRetentionSweeper removes terminal jobs older than the retention
// window on a fixed interval.
func startRetentionSweeper(ctx context.Context, cfg *common.Config, manager *export.Manager, logger *slog.Logger) {
	if cfg.Export.RetentionDays <= 0 || cfg.Export.SweepInterval <= 0 {
		logger.Info("retention sweeper disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.Export.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := manager.CleanupOldJobs(cfg.Export.RetentionDays)
				if removed > 0 {
					logger.Info("retention sweep", "removed", removed, "retention_days", cfg.Export.RetentionDays)
				}
			}
		}
	}()
}

func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
