package render

import (
	"log/slog"

	"github.com/adaeze-okafor/stats-exporter/constants"
	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

// Suite returns one exporter per supported format, ready to register.
func Suite(logger *slog.Logger) map[constants.Format]export.Exporter {
	return map[constants.Format]export.Exporter{
		constants.FormatPDF:      NewPDFExporter(logger),
		constants.FormatXLSX:     NewXLSXExporter(logger),
		constants.FormatCSV:      NewCSVExporter(logger),
		constants.FormatJSON:     NewJSONExporter(logger),
		constants.FormatHTML:     NewHTMLExporter(logger),
		constants.FormatMarkdown: NewMarkdownExporter(logger),
		constants.FormatPNG:      NewChartExporter(logger),
	}
}
