package render

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"

	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

// CSVExporter writes the selected tables into one CSV file. Multi-table
// bundles are concatenated with a blank line and a "# table" marker between
// sections; summaries become a trailing two-column section.
type CSVExporter struct {
	logger *slog.Logger
}

func NewCSVExporter(logger *slog.Logger) *CSVExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVExporter{logger: logger}
}

func (e *CSVExporter) FileExtension() string { return ".csv" }
func (e *CSVExporter) MimeType() string      { return "text/csv; charset=utf-8" }

func (e *CSVExporter) Export(ctx context.Context, req *export.Request) (string, error) {
	p, err := buildPlan(req)
	if err != nil {
		return "", err
	}
	req.Progress(0.05)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	multi := len(p.tables) > 1
	for i, name := range p.tables {
		if err := checkpoint(ctx); err != nil {
			return "", err
		}
		t := p.bundle.Tables[name]

		if multi {
			if i > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString("# " + name + "\n")
		}
		if err := w.Write(t.Columns); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
		for _, row := range p.rows(t) {
			record := make([]string, len(row))
			for ci, v := range row {
				record[ci] = formatCell(v, p.precision)
			}
			if err := w.Write(record); err != nil {
				return "", fmt.Errorf("write row: %w", err)
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", err
		}
		req.Progress(float64(i+1) / float64(len(p.tables)+1))
	}

	if p.includeSummaries {
		if multi || len(p.tables) > 0 {
			buf.WriteString("\n# summaries\n")
		}
		if err := w.Write([]string{"figure", "value"}); err != nil {
			return "", err
		}
		for _, key := range p.bundle.SummaryKeys() {
			s := p.bundle.Summaries[key]
			label := s.Label
			if label == "" {
				label = key
			}
			if err := w.Write([]string{label, formatScalar(s, p.precision)}); err != nil {
				return "", err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", err
		}
	}

	if err := writeFileAtomic(req.OutputPath, buf.Bytes()); err != nil {
		return "", err
	}
	req.Progress(1.0)
	return req.OutputPath, nil
}
