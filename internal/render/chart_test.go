package render

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/adaeze-okafor/stats-exporter/internal/dataset"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestChartExportPNG(t *testing.T) {
	req := testRequest(t, ".png")

	e := NewChartExporter(discardLogger())
	path, err := e.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.HasPrefix(raw, pngMagic) {
		t.Fatalf("artifact is not a PNG: % x", raw[:min(len(raw), 8)])
	}
	if len(raw) < 2000 {
		t.Errorf("chart suspiciously small: %d bytes", len(raw))
	}
}

func TestChartLineKind(t *testing.T) {
	req := testRequest(t, ".png")
	req.Options = map[string]any{"table": "by_year", "chart_kind": "line"}

	e := NewChartExporter(discardLogger())
	path, err := e.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if !bytes.HasPrefix(raw, pngMagic) {
		t.Error("line chart is not a PNG")
	}
}

func TestChartRequiresNumericColumn(t *testing.T) {
	req := testRequest(t, ".png")
	req.Data = &dataset.Bundle{
		Name: "words",
		Tables: map[string]*dataset.Table{
			"labels_only": {
				Columns: []string{"a", "b"},
				Rows:    [][]any{{"x", "y"}, {"p", "q"}},
			},
		},
	}

	e := NewChartExporter(discardLogger())
	_, err := e.Export(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "no numeric column") {
		t.Fatalf("err = %v, want numeric column error", err)
	}
	if _, statErr := os.Stat(req.OutputPath); !os.IsNotExist(statErr) {
		t.Error("failed export left an artifact")
	}
}

func TestChartSeriesSelection(t *testing.T) {
	req := testRequest(t, ".png")
	p, err := buildPlan(req)
	if err != nil {
		t.Fatalf("buildPlan: %v", err)
	}

	table := p.bundle.Tables["arrests_by_region"]
	labels, values, err := chartSeries(table, p)
	if err != nil {
		t.Fatalf("chartSeries: %v", err)
	}
	if len(labels) != 4 || len(values) != 4 {
		t.Fatalf("series = %d labels, %d values", len(labels), len(values))
	}
	if labels[0] != "North" || values[0] != 1200 {
		t.Errorf("first point = %q %v", labels[0], values[0])
	}
}
