package exporter

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// nullText is how text formats show SQL NULL, matching the terminal grid.
const nullText = "NULL"

// sqliteTimeLayout is SQLite's own datetime() text form.
const sqliteTimeLayout = "2006-01-02 15:04:05.999999999"

// cellText renders one value for text formats. Text cells (the only ones a
// spreadsheet could read as a formula) report isText.
func cellText(v any) (s string, isText bool) {
	switch val := v.(type) {
	case nil:
		return nullText, false
	case string:
		return val, true
	case []byte:
		// Text arrives as string; a []byte here is a BLOB.
		return blobLiteral(val), false
	case int64:
		return strconv.FormatInt(val, 10), false
	case int:
		return strconv.Itoa(val), false
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), false
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), false
	case bool:
		// SQLite has no boolean type; it stores 0 and 1.
		if val {
			return "1", false
		}
		return "0", false
	case time.Time:
		return val.Format(sqliteTimeLayout), false
	default:
		return fmt.Sprint(val), true
	}
}

// blobLiteral renders b the way SQLite writes a BLOB literal: X'0A1B'.
func blobLiteral(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}

// guardFormula keeps spreadsheet programs from evaluating text cells that
// look like formulas (CSV injection).
func guardFormula(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// safeText is cellText with formula guarding for text cells.
func safeText(v any) string {
	s, isText := cellText(v)
	if isText {
		return guardFormula(s)
	}
	return s
}
