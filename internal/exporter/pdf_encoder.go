package exporter

import (
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	pdfRowHeight = 7.0
	pdfFont      = "Arial"
	pdfFontSize  = 9
)

// PDFEncoder lays rows out as a bordered table on landscape A4 pages. The
// header row is repeated on every page and cells too wide for their column
// are cut with "...". The whole document is held in memory until Close.
type PDFEncoder struct {
	doc      *fpdf.Fpdf
	out      io.Writer
	tr       func(string) string
	columns  []string
	colWidth float64
	err      error
	written  bool
}

func NewPDFEncoder(w io.Writer) *PDFEncoder {
	doc := fpdf.New("L", "mm", "A4", "")
	doc.SetFont(pdfFont, "", pdfFontSize)
	return &PDFEncoder{
		doc: doc,
		out: w,
		// Core fonts are cp1252; UTF-8 text is translated on the way in.
		tr: doc.UnicodeTranslatorFromDescriptor(""),
	}
}

// WriteHeader splits the page width evenly between the columns and starts
// the first page. A result without columns produces an empty document.
func (e *PDFEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}
	e.columns = columns
	if len(columns) > 0 {
		pageWidth, _ := e.doc.GetPageSize()
		left, _, right, _ := e.doc.GetMargins()
		e.colWidth = (pageWidth - left - right) / float64(len(columns))
		e.doc.SetHeaderFunc(e.drawHeader)
	}
	e.doc.AddPage()
	return e.check()
}

func (e *PDFEncoder) drawHeader() {
	e.doc.SetFont(pdfFont, "B", pdfFontSize)
	for _, col := range e.columns {
		e.doc.CellFormat(e.colWidth, pdfRowHeight, e.fit(col), "1", 0, "C", false, 0, "")
	}
	e.doc.Ln(-1)
	e.doc.SetFont(pdfFont, "", pdfFontSize)
}

func (e *PDFEncoder) WriteRow(values []any) error {
	if e.err != nil || e.colWidth == 0 {
		return e.err
	}
	for i, v := range values {
		if i >= len(e.columns) {
			break
		}
		s, _ := cellText(v)
		e.doc.CellFormat(e.colWidth, pdfRowHeight, e.fit(s), "1", 0, "L", false, 0, "")
	}
	e.doc.Ln(-1)
	return e.check()
}

// fit translates s and shortens it to the column width.
func (e *PDFEncoder) fit(s string) string {
	s = e.tr(s)
	limit := e.colWidth - 2*e.doc.GetCellMargin()
	if e.doc.GetStringWidth(s) <= limit {
		return s
	}
	const ellipsis = "..."
	for len(s) > 0 && e.doc.GetStringWidth(s+ellipsis) > limit {
		s = s[:len(s)-1]
	}
	return s + ellipsis
}

func (e *PDFEncoder) check() error {
	if err := e.doc.Error(); err != nil && e.err == nil {
		e.err = err
	}
	return e.err
}

// Flush is a no-op; a PDF can only be written whole, on Close.
func (e *PDFEncoder) Flush() error {
	return e.err
}

func (e *PDFEncoder) Error() error {
	return e.err
}

// Close writes the document. Later calls are no-ops.
func (e *PDFEncoder) Close() error {
	if e.err != nil || e.written {
		return e.err
	}
	e.written = true
	if e.doc.PageCount() == 0 {
		e.doc.AddPage()
	}
	if err := e.doc.Output(e.out); err != nil {
		e.err = err
	}
	return e.err
}
