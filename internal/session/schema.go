package session

import (
	"strconv"
	"strings"
	"time"
)

// SchemaEntry is one row of the master catalog.
type SchemaEntry struct {
	Kind      string `json:"type"`
	Name      string `json:"name"`
	TableName string `json:"tbl_name"`
	RootPage  string `json:"rootpage"`
	SQL       string `json:"sql"`
}

// IsTable reports whether the entry describes a table.
func (e SchemaEntry) IsTable() bool {
	return strings.EqualFold(e.Kind, "table")
}

// schemaFromRows maps catalog rows by column name, so the column order of
// the catalog statement does not matter.
func schemaFromRows(columns []string, rows [][]any) []SchemaEntry {
	idx := map[string]int{}
	for i, c := range columns {
		idx[strings.ToLower(c)] = i
	}
	field := func(row []any, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return text(row[i])
	}

	entries := make([]SchemaEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, SchemaEntry{
			Kind:      field(row, "type"),
			Name:      field(row, "name"),
			TableName: field(row, "tbl_name"),
			RootPage:  field(row, "rootpage"),
			SQL:       field(row, "sql"),
		})
	}
	return entries
}

// text renders a catalog value; NULL becomes "".
func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return ""
	}
}
