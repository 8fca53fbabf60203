package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// BarChart is a single-series bar chart drawn by RenderBarChart.
type BarChart struct {
	Title  string
	Labels []string
	Values []float64
}

// PDFExporter renders datasets and charts into A4 PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := newDocument(title)

	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return output(pdf)
}

// RenderBarChart draws chart as vertical bars scaled to the largest value.
func (e *PDFExporter) RenderBarChart(chart BarChart) ([]byte, error) {
	if len(chart.Labels) == 0 || len(chart.Labels) != len(chart.Values) {
		return nil, fmt.Errorf("bar chart needs one value per label")
	}
	pdf := newDocument(chart.Title)

	const (
		left   = 20.0
		bottom = 140.0
		height = 100.0
		width  = 170.0
	)
	maxValue := 0.0
	for _, v := range chart.Values {
		if v > maxValue {
			maxValue = v
		}
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(left, bottom, left+width, bottom)
	pdf.Line(left, bottom, left, bottom-height)

	slot := width / float64(len(chart.Values))
	barWidth := slot * 0.6
	pdf.SetFillColor(52, 101, 164)
	pdf.SetFont("Arial", "", 9)
	for i, v := range chart.Values {
		x := left + float64(i)*slot + (slot-barWidth)/2
		h := 0.0
		if maxValue > 0 {
			h = v / maxValue * height
		}
		if h > 0 {
			pdf.Rect(x, bottom-h, barWidth, h, "F")
		}
		pdf.SetXY(x, bottom-h-6)
		pdf.CellFormat(barWidth, 5, formatValue(v), "", 0, "C", false, 0, "")
		pdf.SetXY(x-(slot-barWidth)/2, bottom+2)
		pdf.CellFormat(slot, 5, chart.Labels[i], "", 0, "C", false, 0, "")
	}

	return output(pdf)
}

func newDocument(title string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}
	return pdf
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
