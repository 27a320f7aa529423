package grid

// Snapshot is a copy of a Table's contents.
type Snapshot struct {
	Columns []string
	Rows    [][]any
}

// Table is an in-memory Sink. Its contents live on a Loop and are read back
// with Snapshot.
type Table struct {
	loop    *Loop
	owned   bool
	columns []string
	rows    [][]any
}

// NewTable returns a table bound to loop. A nil loop gives the table a
// private loop that Close stops.
func NewTable(loop *Loop) *Table {
	t := &Table{loop: loop}
	if loop == nil {
		t.loop = NewLoop(64, nil)
		t.owned = true
	}
	return t
}

func (t *Table) Clear() {
	t.columns = nil
	t.rows = nil
}

func (t *Table) AddColumn(name string) {
	t.columns = append(t.columns, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], nil)
	}
}

func (t *Table) AddRow() int {
	t.rows = append(t.rows, make([]any, len(t.columns)))
	return len(t.rows) - 1
}

// SetCell ignores coordinates outside the grid.
func (t *Table) SetCell(row, col int, value any) {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.columns) {
		return
	}
	t.rows[row][col] = value
}

func (t *Table) Invoke(fn func()) error {
	return t.loop.Invoke(fn)
}

// Snapshot copies the table on its loop.
func (t *Table) Snapshot() Snapshot {
	var s Snapshot
	_ = t.loop.Invoke(func() {
		s.Columns = append([]string(nil), t.columns...)
		s.Rows = make([][]any, len(t.rows))
		for i, r := range t.rows {
			s.Rows[i] = append([]any(nil), r...)
		}
	})
	return s
}

// Close stops the table's private loop.
func (t *Table) Close() {
	if t.owned {
		t.loop.Stop()
	}
}
