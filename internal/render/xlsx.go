package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

// XLSXExporter renders a bundle as a workbook: an overview sheet with the
// headline figures, then one sheet per table with a styled header row.
type XLSXExporter struct {
	logger *slog.Logger
}

func NewXLSXExporter(logger *slog.Logger) *XLSXExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXExporter{logger: logger}
}

func (e *XLSXExporter) FileExtension() string { return ".xlsx" }
func (e *XLSXExporter) MimeType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Export(ctx context.Context, req *export.Request) (string, error) {
	start := time.Now()

	p, err := buildPlan(req)
	if err != nil {
		return "", err
	}
	req.Progress(0.05)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	_ = f.SetDocProps(&excelize.DocProperties{
		Title:    titleOf(p.bundle),
		Creator:  req.Settings.Document.Author,
		Subject:  req.Settings.Document.Subject,
		Keywords: strings.Join(req.Settings.Document.Keywords, ","),
	})

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{strings.TrimPrefix(req.Settings.Branding.PrimaryColor, "#")}, Pattern: 1},
	})
	if err != nil {
		return "", fmt.Errorf("header style: %w", err)
	}

	const overview = "Overview"
	if err := f.SetSheetName("Sheet1", overview); err != nil {
		return "", err
	}
	if err := e.writeOverview(f, overview, p, req, headerStyle); err != nil {
		return "", err
	}

	for i, name := range p.tables {
		if err := checkpoint(ctx); err != nil {
			return "", err
		}
		if err := e.writeTable(f, p, name, headerStyle); err != nil {
			return "", fmt.Errorf("sheet %s: %w", name, err)
		}
		req.Progress(float64(i+1) / float64(len(p.tables)+1))
	}

	if idx, _ := f.GetSheetIndex(overview); idx != -1 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", fmt.Errorf("xlsx write: %w", err)
	}
	if err := writeFileAtomic(req.OutputPath, buf.Bytes()); err != nil {
		return "", err
	}

	e.logger.Info("export.xlsx.ok",
		"bundle", p.bundle.Name,
		"sheets", len(p.tables)+1,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	req.Progress(1.0)
	return req.OutputPath, nil
}

func (e *XLSXExporter) writeOverview(f *excelize.File, sheet string, p *plan, req *export.Request, headerStyle int) error {
	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, titleOf(p.bundle))
	write(1, 2, fmt.Sprintf("Persona: %s", req.Persona))
	if p.bundle.Source != "" {
		write(1, 3, fmt.Sprintf("Source: %s", p.bundle.Source))
	}
	write(1, 4, fmt.Sprintf("Exported: %s", time.Now().UTC().Format("2006-01-02 15:04 UTC")))

	row := 6
	if p.includeSummaries {
		write(1, row, "Figure")
		write(2, row, "Value")
		if top, err := excelize.CoordinatesToCellName(1, row); err == nil {
			if bottom, err := excelize.CoordinatesToCellName(2, row); err == nil {
				_ = f.SetCellStyle(sheet, top, bottom, headerStyle)
			}
		}
		row++
		for _, key := range p.bundle.SummaryKeys() {
			s := p.bundle.Summaries[key]
			label := s.Label
			if label == "" {
				label = humanizeName(key)
			}
			write(1, row, label)
			write(2, row, formatScalar(s, p.precision))
			row++
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 36)
	_ = f.SetColWidth(sheet, "B", "B", 24)
	return nil
}

func (e *XLSXExporter) writeTable(f *excelize.File, p *plan, name string, headerStyle int) error {
	sheet := sheetName(name)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	t := p.bundle.Tables[name]
	for ci, col := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(ci+1, 1)
		_ = f.SetCellValue(sheet, cell, col)
	}
	if top, err := excelize.CoordinatesToCellName(1, 1); err == nil {
		if bottom, err := excelize.CoordinatesToCellName(len(t.Columns), 1); err == nil {
			_ = f.SetCellStyle(sheet, top, bottom, headerStyle)
		}
	}

	row := 2
	for _, r := range p.rows(t) {
		for ci, v := range r {
			cell, _ := excelize.CoordinatesToCellName(ci+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	// Widen columns to fit the longest cell, within reason.
	for ci, col := range t.Columns {
		width := float64(len(col)) + 4
		for _, r := range p.rows(t) {
			if l := float64(len(formatCell(r[ci], p.precision))) + 2; l > width {
				width = l
			}
		}
		if width > 60 {
			width = 60
		}
		colName, err := excelize.ColumnNumberToName(ci + 1)
		if err != nil {
			continue
		}
		_ = f.SetColWidth(sheet, colName, colName, width)
	}
	return nil
}

// sheetName truncates to the workbook's 31-character sheet limit.
func sheetName(name string) string {
	s := humanizeName(name)
	if len(s) > 31 {
		s = s[:31]
	}
	return s
}
