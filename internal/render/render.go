// Package render implements the per-format exporters the orchestrator
// dispatches to. Every renderer reads the same bundle plan: persona and view
// steer section order and table selection, options narrow or cap content,
// settings carry branding and layout.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adaeze-okafor/stats-exporter/constants"
	"github.com/adaeze-okafor/stats-exporter/internal/dataset"
	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

// plan is the resolved content selection for one render run.
type plan struct {
	bundle           *dataset.Bundle
	tables           []string // ordered table names to render
	limitRows        int      // 0 = unlimited
	includeSummaries bool
	precision        int
	summariesFirst   bool // executive persona leads with headline figures
}

// buildPlan validates the request payload and applies persona, view and
// options to pick what gets rendered.
func buildPlan(req *export.Request) (*plan, error) {
	bundle, ok := req.Data.(*dataset.Bundle)
	if !ok || bundle == nil {
		return nil, fmt.Errorf("request data is not a dataset bundle (got %T)", req.Data)
	}

	p := &plan{
		bundle:           bundle,
		tables:           bundle.TableNames(),
		includeSummaries: len(bundle.Summaries) > 0,
		precision:        2,
		summariesFirst:   req.Persona == constants.PersonaExecutive,
	}

	// The view hint narrows to a single table when it names one; an unmatched
	// view stays a hint and renders everything.
	if req.View != "" {
		if _, exists := bundle.Tables[req.View]; exists {
			p.tables = []string{req.View}
		}
	}

	if raw, ok := req.Options["table"]; ok {
		name, _ := raw.(string)
		if _, exists := bundle.Tables[name]; !exists {
			return nil, fmt.Errorf("table %q not in bundle %q", name, bundle.Name)
		}
		p.tables = []string{name}
	}
	if raw, ok := req.Options["limit_rows"]; ok {
		p.limitRows = intOption(raw)
	}
	if raw, ok := req.Options["include_summaries"]; ok {
		if b, isBool := raw.(bool); isBool {
			p.includeSummaries = b && len(bundle.Summaries) > 0
		}
	}
	if raw, ok := req.Options["precision"]; ok {
		p.precision = intOption(raw)
	}

	return p, nil
}

// intOption handles both native ints and JSON-decoded float64s.
func intOption(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// rows returns the table's rows honoring the plan's row cap.
func (p *plan) rows(t *dataset.Table) [][]any {
	if p.limitRows > 0 && len(t.Rows) > p.limitRows {
		return t.Rows[:p.limitRows]
	}
	return t.Rows
}

// formatCell renders one cell for text-based formats.
func formatCell(v any, precision int) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case bool:
		return strconv.FormatBool(c)
	case float64:
		if c == float64(int64(c)) && precision <= 6 {
			return strconv.FormatInt(int64(c), 10)
		}
		return strconv.FormatFloat(c, 'f', precision, 64)
	case int:
		return strconv.Itoa(c)
	case int64:
		return strconv.FormatInt(c, 10)
	default:
		return fmt.Sprintf("%v", c)
	}
}

// formatScalar renders a summary figure with its unit.
func formatScalar(s dataset.Scalar, precision int) string {
	val := formatCell(s.Value, precision)
	if s.Unit != "" {
		return val + " " + s.Unit
	}
	return val
}

// titleOf falls back to the bundle name when no display title was extracted.
func titleOf(b *dataset.Bundle) string {
	if b.Title != "" {
		return b.Title
	}
	return b.Name
}

// humanizeName turns a table key like "arrests_by_region" into a heading.
func humanizeName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// checkpoint is the cooperative cancellation probe renderers call between
// expensive steps.
func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("export cancelled: %w", err)
	}
	return nil
}

// writeFileAtomic writes the artifact through a temp file plus rename, so a
// crash mid-write never leaves a partial report behind.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			_ = f.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0o644); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}

	success = true
	return nil
}
