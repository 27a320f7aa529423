// Package grid defines the tabular surface query results are written to and
// the single-goroutine execution context that owns it.
package grid

// Sink is a grid that results are rendered into.
//
// Clear, AddColumn, AddRow and SetCell may only be called from inside a
// function passed to Invoke. Invoke runs fn on the sink's own execution
// context and returns once fn has finished.
type Sink interface {
	Clear()
	AddColumn(name string)
	// AddRow appends an empty row and returns its index.
	AddRow() int
	SetCell(row, col int, value any)
	Invoke(fn func()) error
}

// Fill replaces the contents of s with columns and rows. It must run inside
// s.Invoke.
func Fill(s Sink, columns []string, rows [][]any) {
	s.Clear()
	for _, c := range columns {
		s.AddColumn(c)
	}
	for _, r := range rows {
		AppendRow(s, r)
	}
}

// AppendRow adds one row and fills its cells in column order. It must run
// inside s.Invoke.
func AppendRow(s Sink, values []any) int {
	idx := s.AddRow()
	for col, v := range values {
		s.SetCell(idx, col, v)
	}
	return idx
}
