package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/adaeze-okafor/stats-exporter/internal/dataset"
	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

// ChartExporter renders one table as a PNG chart. The first text column
// becomes the labels, the first numeric column the values; chart_kind picks
// bar or line. Bundles with several tables need a view or options.table to
// choose one.
type ChartExporter struct {
	logger *slog.Logger
}

func NewChartExporter(logger *slog.Logger) *ChartExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChartExporter{logger: logger}
}

func (e *ChartExporter) FileExtension() string { return ".png" }
func (e *ChartExporter) MimeType() string      { return "image/png" }

func (e *ChartExporter) Export(ctx context.Context, req *export.Request) (string, error) {
	p, err := buildPlan(req)
	if err != nil {
		return "", err
	}
	if len(p.tables) == 0 {
		return "", fmt.Errorf("bundle %q has no tables to chart", p.bundle.Name)
	}
	name := p.tables[0]
	t := p.bundle.Tables[name]
	req.Progress(0.1)

	labels, values, err := chartSeries(t, p)
	if err != nil {
		return "", fmt.Errorf("table %q: %w", name, err)
	}
	if err := checkpoint(ctx); err != nil {
		return "", err
	}
	req.Progress(0.4)

	kind := "bar"
	if raw, ok := req.Options["chart_kind"]; ok {
		if s, isStr := raw.(string); isStr {
			kind = s
		}
	}

	var buf bytes.Buffer
	title := fmt.Sprintf("%s — %s", titleOf(p.bundle), humanizeName(name))
	switch kind {
	case "line":
		err = renderLineChart(&buf, title, labels, values, req.Settings)
	default:
		err = renderBarChart(&buf, title, labels, values, req.Settings)
	}
	if err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}
	req.Progress(0.9)

	if err := writeFileAtomic(req.OutputPath, buf.Bytes()); err != nil {
		return "", err
	}
	req.Progress(1.0)
	return req.OutputPath, nil
}

// chartSeries extracts labels and values from the table's first text and
// first numeric column.
func chartSeries(t *dataset.Table, p *plan) (labels []string, values []float64, err error) {
	labelCol, valueCol := -1, -1
	for ci := range t.Columns {
		for _, row := range t.Rows {
			if row[ci] == nil {
				continue
			}
			switch row[ci].(type) {
			case string:
				if labelCol == -1 {
					labelCol = ci
				}
			case float64:
				if valueCol == -1 {
					valueCol = ci
				}
			}
			// First non-nil cell decides the column's type.
			break
		}
	}
	if valueCol == -1 {
		return nil, nil, fmt.Errorf("no numeric column to chart")
	}

	rows := p.rows(t)
	// Axis labels get unreadable past a few dozen bars.
	const maxPoints = 40
	if len(rows) > maxPoints {
		rows = rows[:maxPoints]
	}

	for i, row := range rows {
		v, ok := row[valueCol].(float64)
		if !ok {
			continue
		}
		values = append(values, v)
		if labelCol >= 0 {
			labels = append(labels, truncateLabel(formatCell(row[labelCol], p.precision)))
		} else {
			labels = append(labels, fmt.Sprintf("%d", i+1))
		}
	}
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("numeric column has no values")
	}
	return labels, values, nil
}

func renderBarChart(buf *bytes.Buffer, title string, labels []string, values []float64, settings export.Settings) error {
	fill := drawing.ColorFromHex(strings.TrimPrefix(settings.Branding.PrimaryColor, "#"))
	bg := drawing.ColorFromHex(strings.TrimPrefix(settings.Branding.BackgroundColor, "#"))

	bars := make([]chart.Value, len(values))
	for i, v := range values {
		bars[i] = chart.Value{
			Label: labels[i],
			Value: v,
			Style: chart.Style{FillColor: fill, StrokeColor: fill},
		}
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      settings.Media.ChartWidth,
		Height:     settings.Media.ChartHeight,
		BarWidth:   barWidth(settings.Media.ChartWidth, len(bars)),
		Bars:       bars,
		Background: chart.Style{FillColor: bg},
		Canvas:     chart.Style{FillColor: bg},
	}
	return graph.Render(chart.PNG, buf)
}

func renderLineChart(buf *bytes.Buffer, title string, labels []string, values []float64, settings export.Settings) error {
	stroke := drawing.ColorFromHex(strings.TrimPrefix(settings.Branding.AccentColor, "#"))
	bg := drawing.ColorFromHex(strings.TrimPrefix(settings.Branding.BackgroundColor, "#"))

	xs := make([]float64, len(values))
	ticks := make([]chart.Tick, 0, len(values))
	for i := range values {
		xs[i] = float64(i)
		ticks = append(ticks, chart.Tick{Value: float64(i), Label: labels[i]})
	}

	graph := chart.Chart{
		Title:      title,
		Width:      settings.Media.ChartWidth,
		Height:     settings.Media.ChartHeight,
		Background: chart.Style{FillColor: bg},
		Canvas:     chart.Style{FillColor: bg},
		XAxis:      chart.XAxis{Ticks: ticks},
		Series: []chart.Series{
			chart.ContinuousSeries{
				XValues: xs,
				YValues: values,
				Style:   chart.Style{StrokeColor: stroke, StrokeWidth: 2.5},
			},
		},
	}
	return graph.Render(chart.PNG, buf)
}

// barWidth spreads the bars across roughly 70% of the canvas.
func barWidth(chartWidth, bars int) int {
	if bars == 0 {
		return 20
	}
	w := (chartWidth * 7) / (bars * 10)
	if w < 8 {
		w = 8
	}
	if w > 80 {
		w = 80
	}
	return w
}

func truncateLabel(s string) string {
	if len(s) > 18 {
		return s[:17] + "…"
	}
	return s
}
