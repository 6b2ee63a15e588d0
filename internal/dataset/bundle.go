// Package dataset holds the extracted-statistics bundles the export
// orchestrator renders, plus the loaders and catalog that supply them.
package dataset

import (
	"fmt"
	"sort"
	"time"
)

// Scalar is a single headline figure ("total incidents: 123456 cases").
type Scalar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// Table is one named result set. Cell values are JSON-decoded scalars
// (string, float64, bool or nil).
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Bundle is one document's worth of extracted statistics: named tables plus
// scalar summaries. Exporters treat it as read-only.
type Bundle struct {
	Name        string            `json:"name"`
	Title       string            `json:"title,omitempty"`
	Source      string            `json:"source,omitempty"`
	ExtractedAt time.Time         `json:"extracted_at,omitempty"`
	Tables      map[string]*Table `json:"tables"`
	Summaries   map[string]Scalar `json:"summaries,omitempty"`
}

// TableNames returns the bundle's table names, sorted for deterministic
// rendering order.
func (b *Bundle) TableNames() []string {
	names := make([]string, 0, len(b.Tables))
	for n := range b.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SummaryKeys returns the bundle's summary keys, sorted.
func (b *Bundle) SummaryKeys() []string {
	keys := make([]string, 0, len(b.Summaries))
	for k := range b.Summaries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RowCount sums rows across all tables.
func (b *Bundle) RowCount() int {
	total := 0
	for _, t := range b.Tables {
		total += len(t.Rows)
	}
	return total
}

// Validate rejects bundles an exporter could not render.
func (b *Bundle) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("bundle has no name")
	}
	if len(b.Tables) == 0 && len(b.Summaries) == 0 {
		return fmt.Errorf("bundle %q has no tables and no summaries", b.Name)
	}
	for name, t := range b.Tables {
		if t == nil {
			return fmt.Errorf("bundle %q: table %q is nil", b.Name, name)
		}
		if len(t.Columns) == 0 {
			return fmt.Errorf("bundle %q: table %q has no columns", b.Name, name)
		}
		for i, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return fmt.Errorf("bundle %q: table %q row %d has %d cells, want %d", b.Name, name, i, len(row), len(t.Columns))
			}
		}
	}
	return nil
}
