// Package console renders grids, schema listings and status lines for the
// terminal with pterm.
package console

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pterm/pterm"

	"sqlite-browser/internal/grid"
	"sqlite-browser/internal/session"
)

// DefaultMaxRows caps how many rows Grid prints.
const DefaultMaxRows = 200

// Renderer writes pterm output to a writer.
type Renderer struct {
	out     io.Writer
	maxRows int
}

// NewRenderer returns a renderer writing to out (stdout when nil). maxRows
// <= 0 means DefaultMaxRows.
func NewRenderer(out io.Writer, maxRows int) *Renderer {
	if out == nil {
		out = os.Stdout
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Renderer{out: out, maxRows: maxRows}
}

// Grid prints a snapshot as a boxed table with a header row.
func (r *Renderer) Grid(s grid.Snapshot) error {
	if len(s.Columns) == 0 {
		r.Info("(no columns)")
		return nil
	}

	shown := s.Rows
	if len(shown) > r.maxRows {
		shown = shown[:r.maxRows]
	}

	data := make(pterm.TableData, 0, len(shown)+1)
	data = append(data, append([]string(nil), s.Columns...))
	for _, row := range shown {
		cells := make([]string, len(s.Columns))
		for i := range cells {
			if i < len(row) {
				cells[i] = FormatValue(row[i])
			}
		}
		data = append(data, cells)
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render grid: %w", err)
	}
	fmt.Fprintln(r.out, out)

	if hidden := len(s.Rows) - len(shown); hidden > 0 {
		r.Info(fmt.Sprintf("%d more rows not shown", hidden))
	}
	return nil
}

// Schema prints the catalog entries as a table.
func (r *Renderer) Schema(entries []session.SchemaEntry) error {
	data := pterm.TableData{{"type", "name", "tbl_name", "rootpage"}}
	for _, e := range entries {
		data = append(data, []string{e.Kind, e.Name, e.TableName, e.RootPage})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render schema: %w", err)
	}
	fmt.Fprintln(r.out, out)
	return nil
}

// Tables prints table names as a bullet list.
func (r *Renderer) Tables(names []string) error {
	if len(names) == 0 {
		r.Info("no tables")
		return nil
	}
	items := make([]pterm.BulletListItem, 0, len(names))
	for _, n := range names {
		items = append(items, pterm.BulletListItem{Level: 0, Text: n})
	}
	out, err := pterm.DefaultBulletList.WithItems(items).Srender()
	if err != nil {
		return fmt.Errorf("render tables: %w", err)
	}
	fmt.Fprint(r.out, out)
	return nil
}

func (r *Renderer) Info(text string) {
	fmt.Fprint(r.out, pterm.Info.Sprintln(text))
}

func (r *Renderer) Success(text string) {
	fmt.Fprint(r.out, pterm.Success.Sprintln(text))
}

func (r *Renderer) Error(err error) {
	fmt.Fprint(r.out, pterm.Error.Sprintln(err.Error()))
}

// Elapsed formats a query duration the way the status line shows it.
func Elapsed(d time.Duration) string {
	return fmt.Sprintf("Query complete in %d ms", d.Milliseconds())
}

// LoadedRows is the progress line shown while a query streams.
func LoadedRows(n int) string {
	return "Loaded rows: " + strconv.Itoa(n)
}

// FormatValue renders one cell. NULL stays visible and binary values are
// summarised rather than dumped.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		if utf8.Valid(val) && !strings.ContainsRune(string(val), 0) {
			return string(val)
		}
		return fmt.Sprintf("<blob %d bytes>", len(val))
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
