package main

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/adaeze-okafor/stats-exporter/internal/common"
	"github.com/adaeze-okafor/stats-exporter/internal/dataset"
)

// datahealth checks every configured dataset source: it pings the warehouse
// and cache databases, parses the query catalog, then reports the bundles a
// running exporter would serve.
func main() {
	cfg := common.LoadConfig()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var sources []dataset.Source

	if _, err := os.Stat(cfg.Data.Dir); err != nil {
		log.Printf("data dir %s: SKIP (%v)", cfg.Data.Dir, err)
	} else {
		log.Printf("data dir %s: OK", cfg.Data.Dir)
		sources = append(sources, dataset.NewDirSource(cfg.Data.Dir, logger))
	}

	var qc *dataset.QueryCatalog
	if cfg.Data.SQLCatalogPath != "" {
		var err error
		qc, err = dataset.LoadQueryCatalog(cfg.Data.SQLCatalogPath)
		if err != nil {
			log.Fatalf("query catalog: FAIL (%v)", err)
		}
		log.Printf("query catalog %s: OK (%d queries)", cfg.Data.SQLCatalogPath, len(qc.Queries))
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
			log.Fatalf("warehouse: FAIL (%v)", err)
		}
		defer func() { _ = db.Close() }()

		if err := ping(ctx, db, 1*time.Second); err != nil {
			log.Fatalf("warehouse ping: FAIL (%v)", err)
		}
		log.Println("warehouse ping: OK")
		if qc != nil {
			sources = append(sources, dataset.NewSQLSource(db, qc, logger))
		}
	}

	if cfg.Data.CacheDSN != "" {
		db, err := dataset.OpenCache(cfg.Data.CacheDSN)
		if err != nil {
			log.Fatalf("cache: FAIL (%v)", err)
		}
		defer func() { _ = db.Close() }()

		if err := ping(ctx, db, 1*time.Second); err != nil {
			log.Fatalf("cache ping: FAIL (%v)", err)
		}
		log.Println("cache ping: OK")
		if qc != nil {
			sources = append(sources, dataset.NewSQLSource(db, qc, logger))
		}
	}

	if len(sources) == 0 {
		log.Println("ERROR: no dataset sources configured")
		log.Println("  set DATA_DIR to a bundle directory, or")
		log.Println("  set DATA_WAREHOUSE_DSN / DATA_CACHE_DSN together with DATA_SQL_CATALOG")
		os.Exit(2)
	}

	catalog := dataset.NewCatalog(logger, sources...)
	if err := catalog.Refresh(ctx); err != nil {
		log.Printf("WARNING: partial refresh: %v", err)
	}

	log.Printf("bundles: %d", catalog.Len())
	for _, s := range catalog.List() {
		log.Printf("- %s: %d tables, %d rows (%s)", s.Name, s.Tables, s.Rows, s.Source)
	}
}

func ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.PingContext(ctx)
}
