package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadBundleFile parses one *.json bundle document. The file name (without
// extension) becomes the bundle name when the document does not carry one.
func LoadBundleFile(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", path, err)
	}

	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	if b.Name == "" {
		b.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if b.Source == "" {
		b.Source = filepath.Base(path)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// LoadCSVDir builds a bundle from a directory of <table>.csv files. The
// first record of each file is the header; numeric-looking cells are parsed
// into float64 so downstream charts get numbers, not strings.
func LoadCSVDir(dir string) (*Bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read csv dir %s: %w", dir, err)
	}

	b := &Bundle{
		Name:   filepath.Base(dir),
		Source: dir,
		Tables: map[string]*Table{},
	}

	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		table, err := loadCSVTable(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		b.Tables[name] = table
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func loadCSVTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv %s is empty", path)
	}

	t := &Table{Columns: records[0]}
	for _, rec := range records[1:] {
		row := make([]any, len(t.Columns))
		for i := range t.Columns {
			if i >= len(rec) {
				row[i] = nil
				continue
			}
			row[i] = coerceCell(rec[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// coerceCell turns numeric and boolean strings into typed values; everything
// else stays a string.
func coerceCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(trimmed); err == nil {
		return b
	}
	return s
}

// DirSource loads bundles from a data directory: every *.json file is one
// bundle, every subdirectory containing *.csv files is one bundle.
type DirSource struct {
	dir    string
	logger *slog.Logger
}

func NewDirSource(dir string, logger *slog.Logger) *DirSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirSource{dir: dir, logger: logger}
}

func (s *DirSource) Name() string { return "dir:" + s.dir }

// Load scans the directory. Individual bundle failures are logged and
// skipped so one malformed file cannot hide the rest of the catalog.
func (s *DirSource) Load(ctx context.Context) ([]*Bundle, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir %s: %w", s.dir, err)
	}

	var bundles []*Bundle
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.dir, e.Name())
		switch {
		case e.IsDir():
			if !hasCSVFiles(path) {
				continue
			}
			b, err := LoadCSVDir(path)
			if err != nil {
				s.logger.Warn("skipping csv bundle", "path", path, "error", err)
				continue
			}
			bundles = append(bundles, b)
		case strings.EqualFold(filepath.Ext(e.Name()), ".json"):
			b, err := LoadBundleFile(path)
			if err != nil {
				s.logger.Warn("skipping bundle file", "path", path, "error", err)
				continue
			}
			bundles = append(bundles, b)
		}
	}
	return bundles, nil
}

func hasCSVFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			return true
		}
	}
	return false
}
