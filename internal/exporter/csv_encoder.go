package exporter

import (
	"bufio"
	"encoding/csv"
	"io"
)

// CSVEncoder writes RFC 4180 CSV. NULL is written as NULL, BLOBs as X'..'
// literals and text that looks like a formula is quoted with a leading '.
type CSVEncoder struct {
	out    *bufio.Writer
	csv    *csv.Writer
	record []string
}

func NewCSVEncoder(w io.Writer) *CSVEncoder {
	out := bufio.NewWriterSize(w, 64*1024)
	return &CSVEncoder{out: out, csv: csv.NewWriter(out)}
}

func (e *CSVEncoder) WriteHeader(columns []string) error {
	e.record = make([]string, len(columns))
	return e.csv.Write(columns)
}

// WriteRow writes one record. Rows wider or narrower than the header are
// written as they come.
func (e *CSVEncoder) WriteRow(values []any) error {
	if cap(e.record) < len(values) {
		e.record = make([]string, len(values))
	}
	rec := e.record[:len(values)]
	for i, v := range values {
		rec[i] = safeText(v)
	}
	// csv.Writer copies the fields, so rec can be reused.
	return e.csv.Write(rec)
}

func (e *CSVEncoder) Flush() error {
	e.csv.Flush()
	if err := e.csv.Error(); err != nil {
		return err
	}
	return e.out.Flush()
}

func (e *CSVEncoder) Error() error {
	return e.csv.Error()
}

func (e *CSVEncoder) Close() error {
	return e.Flush()
}
