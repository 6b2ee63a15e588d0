package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/adaeze-okafor/stats-exporter/constants"
	"github.com/adaeze-okafor/stats-exporter/internal/dataset"
	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

// JSONExporter emits the selected bundle content plus export metadata as one
// indented JSON document, for machine consumers.
type JSONExporter struct {
	logger *slog.Logger
}

func NewJSONExporter(logger *slog.Logger) *JSONExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &JSONExporter{logger: logger}
}

func (e *JSONExporter) FileExtension() string { return ".json" }
func (e *JSONExporter) MimeType() string      { return "application/json" }

type jsonDocument struct {
	Title      string                    `json:"title"`
	Source     string                    `json:"source,omitempty"`
	Persona    constants.Persona         `json:"persona"`
	View       string                    `json:"view,omitempty"`
	ExportedAt time.Time                 `json:"exported_at"`
	Author     string                    `json:"author,omitempty"`
	Keywords   []string                  `json:"keywords,omitempty"`
	Tables     map[string]*dataset.Table `json:"tables"`
	Summaries  map[string]dataset.Scalar `json:"summaries,omitempty"`
}

func (e *JSONExporter) Export(ctx context.Context, req *export.Request) (string, error) {
	p, err := buildPlan(req)
	if err != nil {
		return "", err
	}
	req.Progress(0.1)

	doc := jsonDocument{
		Title:      titleOf(p.bundle),
		Source:     p.bundle.Source,
		Persona:    req.Persona,
		View:       req.View,
		ExportedAt: time.Now().UTC(),
		Author:     req.Settings.Document.Author,
		Keywords:   req.Settings.Document.Keywords,
		Tables:     map[string]*dataset.Table{},
	}

	for _, name := range p.tables {
		if err := checkpoint(ctx); err != nil {
			return "", err
		}
		t := p.bundle.Tables[name]
		doc.Tables[name] = &dataset.Table{Columns: t.Columns, Rows: p.rows(t)}
	}
	if p.includeSummaries {
		doc.Summaries = p.bundle.Summaries
	}
	req.Progress(0.6)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	if err := writeFileAtomic(req.OutputPath, out); err != nil {
		return "", err
	}
	req.Progress(1.0)
	return req.OutputPath, nil
}
