package render

import (
	"context"
	"strings"
	"testing"

	"github.com/adaeze-okafor/stats-exporter/internal/dataset"
)

func TestHTMLExport(t *testing.T) {
	req := testRequest(t, ".html")

	e := NewHTMLExporter(discardLogger())
	path, err := e.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	content := readArtifact(t, path)

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<title>National Crime Statistics</title>",
		"<h1>National Crime Statistics</h1>",
		"<h2>Arrests By Region</h2>",
		"<th>region</th>",
		"<td>North</td><td>1200</td><td>true</td>",
		"<h2>Key Figures</h2>",
		"</html>",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("artifact missing %q", want)
		}
	}

	// Branding colors feed the inline stylesheet.
	if !strings.Contains(content, req.Settings.Branding.PrimaryColor) {
		t.Error("primary color not in stylesheet")
	}
}

func TestHTMLEscapesUntrustedCells(t *testing.T) {
	req := testRequest(t, ".html")
	req.Data = &dataset.Bundle{
		Name:  "tricky",
		Title: "<script>alert(1)</script>",
		Tables: map[string]*dataset.Table{
			"t": {Columns: []string{"payload"}, Rows: [][]any{{"<img onerror=x>"}}},
		},
	}

	e := NewHTMLExporter(discardLogger())
	path, err := e.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	content := readArtifact(t, path)

	if strings.Contains(content, "<script>alert(1)</script>") {
		t.Error("title not escaped")
	}
	if !strings.Contains(content, "&lt;script&gt;") {
		t.Error("escaped title missing")
	}
	if strings.Contains(content, "<img onerror") {
		t.Error("cell not escaped")
	}
}

func TestHTMLWatermarkAndRowCap(t *testing.T) {
	req := testRequest(t, ".html")
	req.Settings.Security.WatermarkText = "DRAFT"
	req.Options = map[string]any{"table": "arrests_by_region", "limit_rows": float64(1)}

	e := NewHTMLExporter(discardLogger())
	path, err := e.Export(context.Background(), req)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	content := readArtifact(t, path)

	if !strings.Contains(content, `<div class="watermark">DRAFT</div>`) {
		t.Error("watermark missing")
	}
	if !strings.Contains(content, "1 of 4 rows shown.") {
		t.Error("row cap note missing")
	}
	if strings.Contains(content, "<td>South</td>") {
		t.Error("capped row rendered")
	}
}
