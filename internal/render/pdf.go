package render

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/adaeze-okafor/stats-exporter/internal/export"
)

// PDFExporter writes the report as a PDF without an external PDF dependency.
// It emits the object graph directly: a catalog, a page tree, two Type1 font
// objects (Helvetica and Helvetica-Bold), one flate-compressed content stream
// per page, an info dictionary, and the xref table. Cover page, table of
// contents, per-table grids and the appendix map onto the content toggles in
// Settings; branding colors drive headings and header bands.
type PDFExporter struct {
	logger *slog.Logger
}

func NewPDFExporter(logger *slog.Logger) *PDFExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExporter{logger: logger}
}

func (e *PDFExporter) FileExtension() string { return ".pdf" }
func (e *PDFExporter) MimeType() string      { return "application/pdf" }

func (e *PDFExporter) Export(ctx context.Context, req *export.Request) (string, error) {
	p, err := buildPlan(req)
	if err != nil {
		return "", err
	}
	req.Progress(0.05)

	width, height := req.Settings.PageDimensions()
	c := newPDFComposer(req.Settings, width, height)

	c.startPage()
	if p.includeSummaries && p.summariesFirst {
		c.keyFigures(p)
	}
	for i, name := range p.tables {
		if err := checkpoint(ctx); err != nil {
			return "", err
		}
		c.tableSection(p, name)
		req.Progress(0.1 + 0.7*float64(i+1)/float64(len(p.tables)))
	}
	if p.includeSummaries && !p.summariesFirst {
		c.keyFigures(p)
	}
	if req.Settings.Content.Appendix {
		c.appendix(p)
	}
	c.endPage()

	pages := c.assemble(p, req)
	req.Progress(0.9)

	doc := &pdfDocument{}
	for _, content := range pages {
		doc.addPage(width, height, content)
	}
	data := doc.build(pdfInfoDict(p, req.Settings))

	if err := writeFileAtomic(req.OutputPath, data); err != nil {
		return "", err
	}
	req.Progress(1.0)

	e.logger.Debug("export.pdf.ok",
		"job_id", req.JobID,
		"pages", len(pages),
		"bytes", len(data),
	)
	return req.OutputPath, nil
}

type pdfTOCEntry struct {
	title string
	page  int // 1-based index into the content pages
}

// pdfComposer lays out the content pages. Cover and table of contents are
// generated afterwards, once the content page count and section positions
// are known.
type pdfComposer struct {
	settings export.Settings
	width    float64
	height   float64
	base     float64 // base font size in points

	text    [3]float64
	primary [3]float64
	accent  [3]float64
	bg      [3]float64

	pages []string
	sb    strings.Builder
	y     float64
	open  bool
	toc   []pdfTOCEntry
}

func newPDFComposer(settings export.Settings, width, height float64) *pdfComposer {
	return &pdfComposer{
		settings: settings,
		width:    width,
		height:   height,
		base:     10,
		text:     hexRGB(settings.Branding.TextColor),
		primary:  hexRGB(settings.Branding.PrimaryColor),
		accent:   hexRGB(settings.Branding.AccentColor),
		bg:       hexRGB(settings.Branding.BackgroundColor),
	}
}

func (c *pdfComposer) contentWidth() float64 {
	return c.width - c.settings.Page.MarginLeft - c.settings.Page.MarginRight
}

func (c *pdfComposer) startPage() {
	if c.open {
		c.endPage()
	}
	c.sb.WriteString("q\n")
	fmt.Fprintf(&c.sb, "%.3f %.3f %.3f rg\n", c.bg[0], c.bg[1], c.bg[2])
	fmt.Fprintf(&c.sb, "0 0 %.2f %.2f re f\n", c.width, c.height)
	c.drawWatermark()
	c.y = c.height - c.settings.Page.MarginTop
	c.open = true
}

func (c *pdfComposer) endPage() {
	if !c.open {
		return
	}
	c.sb.WriteString("Q\n")
	c.pages = append(c.pages, c.sb.String())
	c.sb.Reset()
	c.open = false
}

// ensure breaks to a fresh page when fewer than needed points remain.
func (c *pdfComposer) ensure(needed float64) {
	if c.y-needed < c.settings.Page.MarginBottom {
		c.startPage()
	}
}

func (c *pdfComposer) drawText(x, y, size float64, font string, col [3]float64, s string) {
	fmt.Fprintf(&c.sb, "BT\n/%s %.2f Tf\n%.3f %.3f %.3f rg\n%.2f %.2f Td\n(%s) Tj\nET\n",
		font, size, col[0], col[1], col[2], x, y, escapePDFText(s))
}

func (c *pdfComposer) drawWatermark() {
	wm := c.settings.Security.WatermarkText
	if wm == "" {
		return
	}
	size := 54.0
	tw := float64(len(wm)) * size * 0.5
	// 45 degree rotation around the page centre.
	cx := c.width/2 - tw/2*0.7071
	cy := c.height/2 - tw/2*0.7071
	fmt.Fprintf(&c.sb, "BT\n/F2 %.2f Tf\n0.92 0.92 0.92 rg\n0.7071 0.7071 -0.7071 0.7071 %.2f %.2f Tm\n(%s) Tj\nET\n",
		size, cx, cy, escapePDFText(wm))
}

func (c *pdfComposer) heading(title string) {
	size := c.base * 1.4
	c.ensure(size * 5)
	c.toc = append(c.toc, pdfTOCEntry{title: title, page: len(c.pages) + 1})

	left := c.settings.Page.MarginLeft
	c.drawText(left, c.y, size, "F2", c.primary, title)
	ruleY := c.y - 5
	fmt.Fprintf(&c.sb, "%.3f %.3f %.3f RG\n1.2 w\n%.2f %.2f m\n%.2f %.2f l\nS\n",
		c.accent[0], c.accent[1], c.accent[2], left, ruleY, left+c.contentWidth(), ruleY)
	c.y -= size * 2.4
}

func (c *pdfComposer) keyFigures(p *plan) {
	if len(p.bundle.Summaries) == 0 {
		return
	}
	c.heading("Key Figures")
	lineH := c.base * 1.7
	for _, key := range p.bundle.SummaryKeys() {
		c.ensure(lineH)
		s := p.bundle.Summaries[key]
		label := s.Label
		if label == "" {
			label = humanizeName(key)
		}
		c.drawText(c.settings.Page.MarginLeft+10, c.y, c.base, "F2", c.text, label+":")
		c.drawText(c.settings.Page.MarginLeft+190, c.y, c.base, "F1", c.text, formatScalar(s, p.precision))
		c.y -= lineH
	}
	c.y -= lineH
}

func (c *pdfComposer) tableSection(p *plan, name string) {
	t := p.bundle.Tables[name]
	c.heading(humanizeName(name))

	left := c.settings.Page.MarginLeft
	rowH := c.base * 1.6
	colW := c.contentWidth() / float64(len(t.Columns))
	maxChars := int(colW/(c.base*0.5)) - 1
	if maxChars < 4 {
		maxChars = 4
	}

	headerBand := func() {
		fmt.Fprintf(&c.sb, "%.3f %.3f %.3f rg\n%.2f %.2f %.2f %.2f re f\n",
			c.primary[0], c.primary[1], c.primary[2],
			left, c.y-4, c.contentWidth(), c.base+8)
		for ci, col := range t.Columns {
			c.drawText(left+float64(ci)*colW+3, c.y, c.base, "F2", [3]float64{1, 1, 1}, clipPDFCell(humanizeName(col), maxChars))
		}
		c.y -= rowH
	}

	c.ensure(rowH * 3)
	headerBand()

	rows := p.rows(t)
	for _, row := range rows {
		if c.y-rowH < c.settings.Page.MarginBottom {
			c.startPage()
			headerBand()
		}
		for ci := range t.Columns {
			if ci >= len(row) {
				break
			}
			c.drawText(left+float64(ci)*colW+3, c.y, c.base*0.95, "F1", c.text, clipPDFCell(formatCell(row[ci], p.precision), maxChars))
		}
		c.y -= rowH
	}

	if len(rows) < len(t.Rows) {
		c.ensure(rowH)
		note := fmt.Sprintf("%d of %d rows shown.", len(rows), len(t.Rows))
		c.drawText(left, c.y, c.base*0.85, "F1", [3]float64{0.5, 0.5, 0.5}, note)
		c.y -= rowH
	}
	c.y -= rowH
}

func (c *pdfComposer) appendix(p *plan) {
	c.startPage()
	c.heading("Appendix")
	lineH := c.base * 1.7
	left := c.settings.Page.MarginLeft + 10

	lines := []string{
		fmt.Sprintf("Bundle: %s", p.bundle.Name),
		fmt.Sprintf("Source: %s", p.bundle.Source),
	}
	if !p.bundle.ExtractedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Extracted: %s", p.bundle.ExtractedAt.Format(time.RFC3339)))
	}
	lines = append(lines, fmt.Sprintf("Tables: %d", len(p.bundle.Tables)))
	for _, name := range p.bundle.TableNames() {
		lines = append(lines, fmt.Sprintf("  %s (%d rows)", name, len(p.bundle.Tables[name].Rows)))
	}
	for _, line := range lines {
		c.ensure(lineH)
		c.drawText(left, c.y, c.base, "F1", c.text, line)
		c.y -= lineH
	}
}

// assemble prepends cover and table of contents and appends page footers.
// The final page order is cover, contents, content pages.
func (c *pdfComposer) assemble(p *plan, req *export.Request) []string {
	front := 0
	withCover := c.settings.Content.CoverPage
	withTOC := c.settings.Content.TableOfContents && len(c.toc) > 1
	if withCover {
		front++
	}
	if withTOC {
		front++
	}

	pages := make([]string, 0, len(c.pages)+front)
	if withCover {
		pages = append(pages, c.coverPage(p, req))
	}
	if withTOC {
		pages = append(pages, c.tocPage(front))
	}
	pages = append(pages, c.pages...)

	total := len(pages)
	for i := range pages {
		if withCover && i == 0 {
			continue
		}
		pages[i] += pageFooter(i+1, total, c.width, c.settings.Page.MarginBottom, c.base)
	}
	return pages
}

func (c *pdfComposer) coverPage(p *plan, req *export.Request) string {
	var sb strings.Builder
	sb.WriteString("q\n")
	fmt.Fprintf(&sb, "%.3f %.3f %.3f rg\n0 0 %.2f %.2f re f\n", c.bg[0], c.bg[1], c.bg[2], c.width, c.height)

	// Accent band across the upper third.
	fmt.Fprintf(&sb, "%.3f %.3f %.3f rg\n0 %.2f %.2f 6 re f\n",
		c.accent[0], c.accent[1], c.accent[2], c.height*0.68, c.width)

	centered := func(y, size float64, font string, col [3]float64, s string) {
		tw := float64(len(s)) * size * 0.45
		fmt.Fprintf(&sb, "BT\n/%s %.2f Tf\n%.3f %.3f %.3f rg\n%.2f %.2f Td\n(%s) Tj\nET\n",
			font, size, col[0], col[1], col[2], (c.width-tw)/2, y, escapePDFText(s))
	}

	centered(c.height*0.6, c.base*2.4, "F2", c.primary, titleOf(p.bundle))
	if p.bundle.Source != "" {
		centered(c.height*0.6-34, c.base*1.2, "F1", [3]float64{0.3, 0.3, 0.3}, p.bundle.Source)
	}
	audience := fmt.Sprintf("Prepared for the %s audience", req.Persona)
	if req.View != "" {
		audience += fmt.Sprintf(" (%s view)", req.View)
	}
	centered(c.height*0.6-62, c.base, "F1", [3]float64{0.4, 0.4, 0.4}, audience)
	centered(c.height*0.6-88, c.base, "F1", [3]float64{0.5, 0.5, 0.5}, time.Now().Format("January 2, 2006"))

	if author := c.settings.Document.Author; author != "" {
		centered(c.settings.Page.MarginBottom, c.base*0.9, "F1", [3]float64{0.5, 0.5, 0.5}, author)
	}
	if wm := c.settings.Security.WatermarkText; wm != "" {
		centered(c.settings.Page.MarginBottom+16, c.base*0.9, "F2", c.accent, wm)
	}

	sb.WriteString("Q\n")
	return sb.String()
}

func (c *pdfComposer) tocPage(front int) string {
	var sb strings.Builder
	sb.WriteString("q\n")
	fmt.Fprintf(&sb, "%.3f %.3f %.3f rg\n0 0 %.2f %.2f re f\n", c.bg[0], c.bg[1], c.bg[2], c.width, c.height)

	left := c.settings.Page.MarginLeft
	y := c.height - c.settings.Page.MarginTop
	fmt.Fprintf(&sb, "BT\n/F2 %.2f Tf\n%.3f %.3f %.3f rg\n%.2f %.2f Td\n(Contents) Tj\nET\n",
		c.base*1.8, c.primary[0], c.primary[1], c.primary[2], left, y)
	y -= c.base * 3.5

	lineH := c.base * 1.9
	entries := c.toc
	// A single contents page; overflow entries are dropped rather than paged.
	maxEntries := int((y - c.settings.Page.MarginBottom) / lineH)
	if len(entries) > maxEntries && maxEntries > 0 {
		entries = entries[:maxEntries]
	}
	for _, entry := range entries {
		fmt.Fprintf(&sb, "BT\n/F1 %.2f Tf\n%.3f %.3f %.3f rg\n%.2f %.2f Td\n(%s) Tj\nET\n",
			c.base, c.text[0], c.text[1], c.text[2], left+16, y, escapePDFText(entry.title))
		pageLabel := strconv.Itoa(entry.page + front)
		tw := float64(len(pageLabel)) * c.base * 0.5
		fmt.Fprintf(&sb, "BT\n/F1 %.2f Tf\n%.3f %.3f %.3f rg\n%.2f %.2f Td\n(%s) Tj\nET\n",
			c.base, c.text[0], c.text[1], c.text[2], c.width-c.settings.Page.MarginRight-tw, y, pageLabel)
		y -= lineH
	}

	sb.WriteString("Q\n")
	return sb.String()
}

func pageFooter(pageNo, total int, width, marginBottom, base float64) string {
	label := fmt.Sprintf("Page %d of %d", pageNo, total)
	tw := float64(len(label)) * base * 0.45
	return fmt.Sprintf("q\nBT\n/F1 %.2f Tf\n0.5 0.5 0.5 rg\n%.2f %.2f Td\n(%s) Tj\nET\nQ\n",
		base*0.85, (width-tw)/2, marginBottom/2, label)
}

// pdfDocument assembles the object graph. Objects 1-4 are fixed (catalog,
// page tree, regular font, bold font); stream and page objects follow in
// insertion order and the info dictionary comes last.
type pdfDocument struct {
	objects []string
	pages   []int
	count   int
}

func (d *pdfDocument) addObject(content string) int {
	d.objects = append(d.objects, content)
	return len(d.objects)
}

func (d *pdfDocument) addPage(width, height float64, content string) {
	d.count++

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte(content))
	zw.Close()

	streamObj := fmt.Sprintf("<< /Length %d\n/Filter /FlateDecode\n>>\nstream\n%sendstream",
		buf.Len(), buf.Bytes())
	streamNum := d.addObject(streamObj)

	pageObj := fmt.Sprintf("<< /Type /Page\n/Parent 2 0 R\n/MediaBox [0 0 %.2f %.2f]\n/Contents %d 0 R\n/Resources << /Font << /F1 3 0 R /F2 4 0 R >> >>\n>>",
		width, height, streamNum+4)
	pageNum := d.addObject(pageObj)
	d.pages = append(d.pages, pageNum)
}

func (d *pdfDocument) build(infoDict string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	buf.WriteString("%\xE2\xE3\xCF\xD3\n")

	var kids strings.Builder
	kids.WriteString("[")
	for i, pageNum := range d.pages {
		if i > 0 {
			kids.WriteString(" ")
		}
		fmt.Fprintf(&kids, "%d 0 R", pageNum+4)
	}
	kids.WriteString("]")

	final := []string{
		"<< /Type /Catalog\n/Pages 2 0 R\n>>",
		fmt.Sprintf("<< /Type /Pages\n/Kids %s\n/Count %d\n>>", kids.String(), d.count),
		"<< /Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica\n/Encoding /WinAnsiEncoding\n>>",
		"<< /Type /Font\n/Subtype /Type1\n/BaseFont /Helvetica-Bold\n/Encoding /WinAnsiEncoding\n>>",
	}
	final = append(final, d.objects...)
	final = append(final, infoDict)
	infoNum := len(final)

	offsets := make([]int, len(final)+1)
	for i, obj := range final {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefPos := buf.Len()
	buf.WriteString("xref\n")
	fmt.Fprintf(&buf, "0 %d\n", len(final)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(final); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}

	buf.WriteString("trailer\n")
	fmt.Fprintf(&buf, "<< /Size %d\n/Root 1 0 R\n/Info %d 0 R\n>>", len(final)+1, infoNum)
	buf.WriteString("\nstartxref\n")
	fmt.Fprintf(&buf, "%d\n", xrefPos)
	buf.WriteString("%%EOF\n")
	return buf.Bytes()
}

func pdfInfoDict(p *plan, settings export.Settings) string {
	var sb strings.Builder
	sb.WriteString("<<\n")
	fmt.Fprintf(&sb, "/Title (%s)\n", escapePDFText(titleOf(p.bundle)))
	if settings.Document.Author != "" {
		fmt.Fprintf(&sb, "/Author (%s)\n", escapePDFText(settings.Document.Author))
	}
	if settings.Document.Subject != "" {
		fmt.Fprintf(&sb, "/Subject (%s)\n", escapePDFText(settings.Document.Subject))
	}
	if len(settings.Document.Keywords) > 0 {
		fmt.Fprintf(&sb, "/Keywords (%s)\n", escapePDFText(strings.Join(settings.Document.Keywords, ", ")))
	}
	sb.WriteString("/Producer (stats-exporter)\n")
	sb.WriteString("/Creator (stats-exporter)\n")
	now := time.Now().UTC().Format("D:20060102150405Z")
	fmt.Fprintf(&sb, "/CreationDate (%s)\n", now)
	fmt.Fprintf(&sb, "/ModDate (%s)\n", now)
	sb.WriteString(">>")
	return sb.String()
}

// escapePDFText escapes literal-string delimiters and maps characters
// outside WinAnsi to safe replacements.
func escapePDFText(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '(':
			sb.WriteString(`\(`)
		case ')':
			sb.WriteString(`\)`)
		case '\n', '\r', '\t':
			sb.WriteByte(' ')
		case '—', '–':
			sb.WriteByte('-')
		case '‘', '’':
			sb.WriteByte('\'')
		case '“', '”':
			sb.WriteByte('"')
		case '…':
			sb.WriteString("...")
		default:
			if r < 32 || r > 255 {
				sb.WriteByte('?')
			} else {
				sb.WriteRune(r)
			}
		}
	}
	return sb.String()
}

func clipPDFCell(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return s[:maxChars]
	}
	return s[:maxChars-3] + "..."
}

func hexRGB(hex string) [3]float64 {
	h := strings.TrimPrefix(hex, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil || len(h) != 6 {
		return [3]float64{0, 0, 0}
	}
	return [3]float64{
		float64(v>>16&0xff) / 255,
		float64(v>>8&0xff) / 255,
		float64(v&0xff) / 255,
	}
}
