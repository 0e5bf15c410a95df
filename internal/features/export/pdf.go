package export

import (
	"bytes"
	"fmt"
	"math"

	"go-erp/internal/features/execution"

	"github.com/go-pdf/fpdf"
)

const (
	pdfLineHeight = 6.0
	pdfBarHeight  = 5.0
	pdfMaxBars    = 30
)

type pdfWriter struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	width float64
}

// renderPDF lays out every component top to bottom: text as paragraphs,
// tables as grids, charts as horizontal bars followed by their data.
func renderPDF(exec *execution.Execution) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	stamp := generatedAt(exec)
	pdf.SetCreationDate(exec.CreatedAt.UTC())
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(exec.ReportName, true)
	pdf.SetAuthor(exec.ExecutedBy, true)
	pdf.SetCreator("go-erp reports", true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	w.width = pageW - left - right

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s  |  page %d/{nb}", w.tr(exec.ExecutionNo), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, w.tr(exec.ReportName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, w.tr(fmt.Sprintf("Execution %s, generated %s", exec.ExecutionNo, stamp.Format("2006-01-02 15:04 UTC"))), "", 1, "L", false, 0, "")
	for _, p := range sortedParams(exec) {
		pdf.CellFormat(0, 5, w.tr(fmt.Sprintf("%s: %s", p[0], p[1])), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	for _, out := range exec.Result.Outputs {
		w.section(out)
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) section(out execution.Output) {
	pdf := w.pdf
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, w.tr(out.Name), "B", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 9)

	switch {
	case out.Text != nil:
		pdf.MultiCell(0, 5, w.tr(out.Text.Content), "", "L", false)
	case out.Empty:
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, pdfLineHeight, "No data", "", 1, "L", false, 0, "")
	default:
		if out.Chart != nil {
			w.bars(out.Chart)
		}
		if header, rows, ok := grid(out); ok {
			w.table(header, rows)
		}
	}
	pdf.Ln(6)
}

func (w *pdfWriter) table(header []string, rows [][]string) {
	if len(header) == 0 {
		return
	}
	pdf := w.pdf
	colW := w.width / float64(len(header))

	drawHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(224, 224, 224)
		for _, h := range header {
			pdf.CellFormat(colW, pdfLineHeight, w.fit(h, colW), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	drawHeader()

	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range rows {
		if pdf.GetY()+pdfLineHeight > pageH-bottom-15 {
			pdf.AddPage()
			drawHeader()
		}
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(colW, pdfLineHeight, w.fit(cell, colW), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

// bars draws the first numeric series as horizontal bars scaled to the
// largest absolute value.
func (w *pdfWriter) bars(c *execution.ChartOutput) {
	if len(c.Series) == 0 || len(c.Labels) == 0 {
		return
	}
	pdf := w.pdf
	series := c.Series[0]

	maxVal := 0.0
	for _, v := range series.Values {
		if f, ok := v.(float64); ok {
			maxVal = math.Max(maxVal, math.Abs(f))
		}
	}
	if maxVal == 0 {
		return
	}

	labelW := w.width * 0.3
	barW := w.width * 0.55
	n := len(c.Labels)
	if n > pdfMaxBars {
		n = pdfMaxBars
	}

	pdf.SetFillColor(70, 130, 180)
	for i := 0; i < n; i++ {
		var f float64
		if i < len(series.Values) {
			f, _ = series.Values[i].(float64)
		}
		x, y := pdf.GetXY()
		pdf.CellFormat(labelW, pdfBarHeight, w.fit(c.Labels[i], labelW), "", 0, "R", false, 0, "")
		length := barW * math.Abs(f) / maxVal
		if length > 0 {
			pdf.Rect(x+labelW+2, y+0.5, length, pdfBarHeight-1, "F")
		}
		pdf.SetXY(x+labelW+barW+4, y)
		pdf.CellFormat(0, pdfBarHeight, execution.FormatCell(f), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

// fit translates s and truncates it to the cell width.
func (w *pdfWriter) fit(s string, width float64) string {
	s = w.tr(s)
	limit := width - 2
	if w.pdf.GetStringWidth(s) <= limit {
		return s
	}
	r := []byte(s)
	for len(r) > 0 && w.pdf.GetStringWidth(string(r)+"...") > limit {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
