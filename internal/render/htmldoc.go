package render

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

// HTMLExporter renders a standalone HTML report. Branding colors feed the
// inline stylesheet so the artifact needs no external assets.
type HTMLExporter struct {
	logger *slog.Logger
}

func NewHTMLExporter(logger *slog.Logger) *HTMLExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLExporter{logger: logger}
}

func (e *HTMLExporter) FileExtension() string { return ".html" }
func (e *HTMLExporter) MimeType() string      { return "text/html; charset=utf-8" }

func (e *HTMLExporter) Export(ctx context.Context, req *export.Request) (string, error) {
	p, err := buildPlan(req)
	if err != nil {
		return "", err
	}
	req.Progress(0.05)

	b := req.Settings.Branding
	title := titleOf(p.bundle)

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(title)))
	if req.Settings.Document.Author != "" {
		sb.WriteString(fmt.Sprintf("<meta name=\"author\" content=%q>\n", req.Settings.Document.Author))
	}
	if len(req.Settings.Document.Keywords) > 0 {
		sb.WriteString(fmt.Sprintf("<meta name=\"keywords\" content=%q>\n", strings.Join(req.Settings.Document.Keywords, ",")))
	}
	sb.WriteString("<style>\n")
	sb.WriteString(fmt.Sprintf("body { font-family: sans-serif; color: %s; background: %s; margin: 2rem auto; max-width: 960px; }\n", b.TextColor, b.BackgroundColor))
	sb.WriteString(fmt.Sprintf("h1 { color: %s; border-bottom: 3px solid %s; padding-bottom: .3rem; }\n", b.PrimaryColor, b.AccentColor))
	sb.WriteString(fmt.Sprintf("h2 { color: %s; }\n", b.PrimaryColor))
	sb.WriteString("table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }\n")
	sb.WriteString(fmt.Sprintf("th { background: %s; color: %s; text-align: left; padding: .4rem .6rem; }\n", b.PrimaryColor, b.BackgroundColor))
	sb.WriteString("td { padding: .35rem .6rem; border-bottom: 1px solid #ddd; }\n")
	sb.WriteString(fmt.Sprintf("tr:nth-child(even) td { background: color-mix(in srgb, %s 12%%, %s); }\n", b.SecondaryColor, b.BackgroundColor))
	sb.WriteString(fmt.Sprintf(".figures li strong { color: %s; }\n", b.PrimaryColor))
	sb.WriteString(".watermark { position: fixed; top: 40%; left: 10%; font-size: 5rem; opacity: .08; transform: rotate(-25deg); pointer-events: none; }\n")
	sb.WriteString(".meta { color: #777; font-size: .85rem; }\n")
	sb.WriteString("</style>\n</head>\n<body>\n")

	if wm := req.Settings.Security.WatermarkText; wm != "" {
		sb.WriteString(fmt.Sprintf("<div class=\"watermark\">%s</div>\n", html.EscapeString(wm)))
	}

	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(title)))
	sb.WriteString(fmt.Sprintf("<p class=\"meta\">%s &middot; persona: %s", time.Now().UTC().Format("2006-01-02 15:04 UTC"), req.Persona))
	if p.bundle.Source != "" {
		sb.WriteString(" &middot; source: " + html.EscapeString(p.bundle.Source))
	}
	sb.WriteString("</p>\n")

	if p.summariesFirst && p.includeSummaries {
		writeHTMLSummaries(&sb, p)
	}

	for i, name := range p.tables {
		if err := checkpoint(ctx); err != nil {
			return "", err
		}
		t := p.bundle.Tables[name]

		sb.WriteString(fmt.Sprintf("<h2>%s</h2>\n<table>\n<thead><tr>", html.EscapeString(humanizeName(name))))
		for _, col := range t.Columns {
			sb.WriteString("<th>" + html.EscapeString(col) + "</th>")
		}
		sb.WriteString("</tr></thead>\n<tbody>\n")
		for _, row := range p.rows(t) {
			sb.WriteString("<tr>")
			for _, v := range row {
				sb.WriteString("<td>" + html.EscapeString(formatCell(v, p.precision)) + "</td>")
			}
			sb.WriteString("</tr>\n")
		}
		sb.WriteString("</tbody>\n</table>\n")
		if p.limitRows > 0 && len(t.Rows) > p.limitRows {
			sb.WriteString(fmt.Sprintf("<p class=\"meta\">%d of %d rows shown.</p>\n", p.limitRows, len(t.Rows)))
		}

		req.Progress(float64(i+1) / float64(len(p.tables)+1))
	}

	if !p.summariesFirst && p.includeSummaries {
		writeHTMLSummaries(&sb, p)
	}

	sb.WriteString("</body>\n</html>\n")

	if err := writeFileAtomic(req.OutputPath, []byte(sb.String())); err != nil {
		return "", err
	}
	req.Progress(1.0)
	return req.OutputPath, nil
}

func writeHTMLSummaries(sb *strings.Builder, p *plan) {
	sb.WriteString("<h2>Key Figures</h2>\n<ul class=\"figures\">\n")
	for _, key := range p.bundle.SummaryKeys() {
		s := p.bundle.Summaries[key]
		label := s.Label
		if label == "" {
			label = humanizeName(key)
		}
		sb.WriteString(fmt.Sprintf("<li><strong>%s</strong>: %s</li>\n",
			html.EscapeString(label), html.EscapeString(formatScalar(s, p.precision))))
	}
	sb.WriteString("</ul>\n")
}
