package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// PoolConfig tunes the warehouse connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// OpenWarehouse creates a pgx pool and wraps it as *sql.DB.
func OpenWarehouse(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to warehouse", "dsn", cfg.DSN)

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse warehouse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "stats-exporter"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("warehouse connection established")
	return db, nil
}

// OpenCache opens the local sqlite extraction cache. WAL and a busy timeout
// keep concurrent readers from tripping over the extractor writing to it.
func OpenCache(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db %s: %w", path, err)
	}
	return db, nil
}

// QueryCatalog maps table names to the SQL that produces them, loaded from a
// TOML file:
//
//	name  = "warehouse"
//	title = "Warehouse metrics"
//
//	[queries]
//	monthly_exports = "SELECT month, total FROM exports_by_month ORDER BY month"
type QueryCatalog struct {
	Name    string            `toml:"name"`
	Title   string            `toml:"title"`
	Queries map[string]string `toml:"queries"`
}

// LoadQueryCatalog parses a query catalog file.
func LoadQueryCatalog(path string) (*QueryCatalog, error) {
	var qc QueryCatalog
	if _, err := toml.DecodeFile(path, &qc); err != nil {
		return nil, fmt.Errorf("parse query catalog %s: %w", path, err)
	}
	if qc.Name == "" {
		return nil, fmt.Errorf("query catalog %s: name is required", path)
	}
	if len(qc.Queries) == 0 {
		return nil, fmt.Errorf("query catalog %s: no queries defined", path)
	}
	return &qc, nil
}

// SQLSource materializes a bundle by running a query catalog against a
// database handle.
type SQLSource struct {
	db      *sql.DB
	catalog *QueryCatalog
	logger  *slog.Logger
}

func NewSQLSource(db *sql.DB, catalog *QueryCatalog, logger *slog.Logger) *SQLSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLSource{db: db, catalog: catalog, logger: logger}
}

func (s *SQLSource) Name() string { return "sql:" + s.catalog.Name }

// Load runs every catalog query into a table. A failing query is logged and
// its table skipped; the bundle still loads with the rest.
func (s *SQLSource) Load(ctx context.Context) ([]*Bundle, error) {
	b := &Bundle{
		Name:        s.catalog.Name,
		Title:       s.catalog.Title,
		Source:      s.Name(),
		ExtractedAt: time.Now().UTC(),
		Tables:      map[string]*Table{},
	}

	for tableName, query := range s.catalog.Queries {
		t, err := s.queryTable(ctx, query)
		if err != nil {
			s.logger.Warn("catalog query failed", "table", tableName, "error", err)
			continue
		}
		b.Tables[tableName] = t
	}

	if len(b.Tables) == 0 {
		return nil, fmt.Errorf("no catalog query succeeded for %s", s.catalog.Name)
	}
	return []*Bundle{b}, nil
}

func (s *SQLSource) queryTable(ctx context.Context, query string) (*Table, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: cols}
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range cells {
			if raw, ok := v.([]byte); ok {
				cells[i] = string(raw)
			}
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, rows.Err()
}
