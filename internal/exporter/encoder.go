package exporter

import (
	"errors"
	"fmt"
	"io"
)

// Supported export formats.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatExcel = "excel"
	FormatPDF   = "pdf"
)

var ErrUnknownFormat = errors.New("unknown export format")

// RowEncoder defines a common interface for different export formats (CSV, JSON, Excel, PDF).
// It allows the exporter to be agnostic of the underlying output format.
type RowEncoder interface {
	// WriteHeader writes the initial column headers to the output.
	// This should be called exactly once before any rows are written.
	WriteHeader(columns []string) error

	// WriteRow writes a single row of data.
	// The values slice length must match the headers length.
	WriteRow(values []interface{}) error

	// Flush ensures all buffered data is written to the underlying writer.
	Flush() error

	// Error returns the first error that occurred during encoding, if any.
	Error() error

	// Close flushes the encoder and releases any resources.
	// Document formats (XLSX, PDF) are written out here at the latest.
	io.Closer
}

// NewEncoder returns the encoder for format. An empty format means CSV.
func NewEncoder(format string, w io.Writer) (RowEncoder, error) {
	switch format {
	case FormatCSV, "":
		return NewCSVEncoder(w), nil
	case FormatJSON:
		return NewJSONEncoder(w), nil
	case FormatExcel, "xlsx":
		return NewExcelEncoder(w), nil
	case FormatPDF:
		return NewPDFEncoder(w), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ValidFormat reports whether NewEncoder accepts format.
func ValidFormat(format string) bool {
	switch format {
	case "", FormatCSV, FormatJSON, FormatExcel, "xlsx", FormatPDF:
		return true
	default:
		return false
	}
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	switch format {
	case FormatJSON:
		return "jsonl"
	case FormatExcel, "xlsx":
		return "xlsx"
	case FormatPDF:
		return "pdf"
	default:
		return "csv"
	}
}
