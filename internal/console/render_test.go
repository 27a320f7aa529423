package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlite-browser/internal/grid"
	"sqlite-browser/internal/session"
)

func init() {
	pterm.DisableStyling()
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"ada", "ada"},
		{[]byte("text"), "text"},
		{[]byte{0xff, 0x00, 0x01}, "<blob 3 bytes>"},
		{int64(42), "42"},
		{1.5, "1.5"},
		{true, "true"},
		{ts, "2024-05-01T12:00:00Z"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatValue(c.in))
	}
}

func TestRenderer_Grid(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 0)

	err := r.Grid(grid.Snapshot{
		Columns: []string{"id", "name"},
		Rows:    [][]any{{int64(1), "ada"}, {int64(2), nil}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "name")
	assert.Contains(t, out, "ada")
	assert.Contains(t, out, "NULL")
}

func TestRenderer_GridTruncates(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 2)

	rows := [][]any{{"r1"}, {"r2"}, {"r3"}, {"r4"}}
	require.NoError(t, r.Grid(grid.Snapshot{Columns: []string{"v"}, Rows: rows}))

	out := buf.String()
	assert.Contains(t, out, "r2")
	assert.NotContains(t, out, "r3")
	assert.Contains(t, out, "2 more rows not shown")
}

func TestRenderer_GridWithoutColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, 0).Grid(grid.Snapshot{}))
	assert.Contains(t, buf.String(), "(no columns)")
}

func TestRenderer_SchemaAndTables(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 0)

	require.NoError(t, r.Schema([]session.SchemaEntry{
		{Kind: "table", Name: "a", TableName: "a", RootPage: "2"},
		{Kind: "index", Name: "a_idx", TableName: "a", RootPage: "3"},
	}))
	require.NoError(t, r.Tables([]string{"a", "b"}))

	out := buf.String()
	assert.Contains(t, out, "tbl_name")
	assert.Contains(t, out, "a_idx")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines[len(lines)-1], "b")
}

func TestRenderer_StatusLines(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 0)

	r.Success(Elapsed(1500 * time.Millisecond))
	r.Error(errors.New("no such table: c"))
	r.Info(LoadedRows(100))

	out := buf.String()
	assert.Contains(t, out, "Query complete in 1500 ms")
	assert.Contains(t, out, "no such table: c")
	assert.Contains(t, out, "Loaded rows: 100")
}

func TestProgress_SilentWithoutOutput(t *testing.T) {
	pterm.DisableOutput()
	defer pterm.EnableOutput()

	p := StartProgress("running")
	p.Update(10)
	p.Done("ok")
	p.Fail(errors.New("late"))
}
