package exporter

import (
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet = "Results"
	// excelMaxRows is the sheet row limit, header included.
	excelMaxRows = 1048576
	// excelMaxCell is the longest text a cell holds.
	excelMaxCell = 32767
)

var ErrExcelRowLimit = errors.New("excel row limit exceeded (1,048,576 rows)")

// ExcelEncoder streams rows into a single "Results" sheet with a bold header.
// Numbers and times keep their type, NULL cells are left empty and BLOBs are
// written as X'..' text. The workbook is written on the first Flush.
type ExcelEncoder struct {
	book    *excelize.File
	sheet   *excelize.StreamWriter
	out     io.Writer
	bold    int
	next    int
	err     error
	written bool
}

func NewExcelEncoder(w io.Writer) *ExcelEncoder {
	e := &ExcelEncoder{book: excelize.NewFile(), out: w, next: 1}
	if e.err = e.book.SetSheetName("Sheet1", resultsSheet); e.err != nil {
		return e
	}
	e.bold, e.err = e.book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if e.err != nil {
		return e
	}
	e.sheet, e.err = e.book.NewStreamWriter(resultsSheet)
	return e
}

// WriteHeader sizes the columns from their names and writes the header row.
func (e *ExcelEncoder) WriteHeader(columns []string) error {
	if e.err != nil {
		return e.err
	}

	row := make([]any, len(columns))
	for i, name := range columns {
		width := float64(utf8.RuneCountInString(name) + 2)
		width = min(max(width, 10), 60)
		if err := e.sheet.SetColWidth(i+1, i+1, width); err != nil {
			e.err = err
			return err
		}
		row[i] = excelize.Cell{StyleID: e.bold, Value: name}
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) WriteRow(values []any) error {
	if e.err != nil {
		return e.err
	}
	if e.next > excelMaxRows {
		e.err = ErrExcelRowLimit
		return e.err
	}

	row := make([]any, len(values))
	for i, v := range values {
		row[i] = excelValue(v)
	}
	return e.setRow(row)
}

func (e *ExcelEncoder) setRow(row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, e.next)
	if err == nil {
		err = e.sheet.SetRow(cell, row)
	}
	if err != nil {
		e.err = err
		return err
	}
	e.next++
	return nil
}

// excelValue keeps numeric and time cells typed; everything else is text.
func excelValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case int64, int, float64, float32, bool:
		return val
	case time.Time:
		return val
	}
	s := safeText(v)
	if utf8.RuneCountInString(s) > excelMaxCell {
		s = string([]rune(s)[:excelMaxCell])
	}
	return s
}

// Flush finishes the sheet and writes the workbook. A workbook is written
// once; later calls are no-ops.
func (e *ExcelEncoder) Flush() error {
	if e.err != nil || e.written {
		return e.err
	}
	e.written = true

	if err := e.sheet.Flush(); err != nil {
		e.err = err
		return err
	}
	if err := e.book.Write(e.out); err != nil {
		e.err = err
	}
	return e.err
}

func (e *ExcelEncoder) Error() error {
	return e.err
}

func (e *ExcelEncoder) Close() error {
	err := e.Flush()
	_ = e.book.Close()
	return err
}
