package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

// MarkdownExporter renders a bundle as a Markdown report with YAML front
// matter, section headings and pipe tables.
type MarkdownExporter struct {
	logger *slog.Logger
}

func NewMarkdownExporter(logger *slog.Logger) *MarkdownExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkdownExporter{logger: logger}
}

func (e *MarkdownExporter) FileExtension() string { return ".md" }
func (e *MarkdownExporter) MimeType() string      { return "text/markdown; charset=utf-8" }

func (e *MarkdownExporter) Export(ctx context.Context, req *export.Request) (string, error) {
	p, err := buildPlan(req)
	if err != nil {
		return "", err
	}
	req.Progress(0.05)

	var sb strings.Builder

	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(titleOf(p.bundle))))
	if p.bundle.Source != "" {
		sb.WriteString(fmt.Sprintf("source: %s\n", escapeYAML(p.bundle.Source)))
	}
	sb.WriteString(fmt.Sprintf("persona: %s\n", req.Persona))
	if req.View != "" {
		sb.WriteString(fmt.Sprintf("view: %s\n", escapeYAML(req.View)))
	}
	sb.WriteString(fmt.Sprintf("author: %s\n", escapeYAML(req.Settings.Document.Author)))
	if len(req.Settings.Document.Keywords) > 0 {
		sb.WriteString(fmt.Sprintf("keywords: [%s]\n", strings.Join(req.Settings.Document.Keywords, ", ")))
	}
	sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().UTC().Format(time.RFC3339)))
	sb.WriteString("---\n\n")

	sb.WriteString(fmt.Sprintf("# %s\n\n", titleOf(p.bundle)))
	if req.Settings.Security.WatermarkText != "" {
		sb.WriteString(fmt.Sprintf("> %s\n\n", req.Settings.Security.WatermarkText))
	}

	if p.summariesFirst && p.includeSummaries {
		writeMarkdownSummaries(&sb, p)
	}

	if req.Settings.Content.TableOfContents && len(p.tables) > 1 {
		sb.WriteString("## Contents\n\n")
		for _, name := range p.tables {
			anchor := strings.ReplaceAll(strings.ToLower(humanizeName(name)), " ", "-")
			sb.WriteString(fmt.Sprintf("- [%s](#%s)\n", humanizeName(name), anchor))
		}
		sb.WriteString("\n")
	}

	for i, name := range p.tables {
		if err := checkpoint(ctx); err != nil {
			return "", err
		}
		t := p.bundle.Tables[name]

		sb.WriteString(fmt.Sprintf("## %s\n\n", humanizeName(name)))
		sb.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat(" --- |", len(t.Columns)) + "\n")
		for _, row := range p.rows(t) {
			cells := make([]string, len(row))
			for ci, v := range row {
				cells[ci] = escapeMarkdownCell(formatCell(v, p.precision))
			}
			sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
		if p.limitRows > 0 && len(t.Rows) > p.limitRows {
			sb.WriteString(fmt.Sprintf("\n_%d of %d rows shown._\n", p.limitRows, len(t.Rows)))
		}
		sb.WriteString("\n")

		req.Progress(float64(i+1) / float64(len(p.tables)+1))
	}

	if !p.summariesFirst && p.includeSummaries {
		writeMarkdownSummaries(&sb, p)
	}

	if err := writeFileAtomic(req.OutputPath, []byte(sb.String())); err != nil {
		return "", err
	}
	req.Progress(1.0)
	return req.OutputPath, nil
}

func writeMarkdownSummaries(sb *strings.Builder, p *plan) {
	sb.WriteString("## Key Figures\n\n")
	for _, key := range p.bundle.SummaryKeys() {
		s := p.bundle.Summaries[key]
		label := s.Label
		if label == "" {
			label = humanizeName(key)
		}
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", label, formatScalar(s, p.precision)))
	}
	sb.WriteString("\n")
}

func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#[]{}\"'") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
