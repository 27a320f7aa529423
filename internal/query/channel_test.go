package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlite-browser/internal/driver"
	"sqlite-browser/internal/testutil"
)

func openSQLite(t *testing.T, stmts ...string) *Channel {
	t.Helper()
	path := testutil.SQLiteFile(t, stmts...)
	d := driver.NewSQLiteDriver(driver.DriverSQLite3, path, driver.Options{})
	require.NoError(t, d.Open(context.Background()))
	t.Cleanup(func() { _ = d.Close() })
	return NewChannel(d)
}

func TestExecuteSync(t *testing.T) {
	ch := openSQLite(t,
		`CREATE TABLE t (id INTEGER, name TEXT, data BLOB)`,
		`INSERT INTO t VALUES (1, 'one', x'00ff'), (2, 'two', NULL)`,
	)

	res, err := ch.ExecuteSync(context.Background(), "SELECT id, name, data FROM t ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "data"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(1), res.Rows[0][0])
	assert.Equal(t, "one", res.Rows[0][1])
	assert.Equal(t, []byte{0x00, 0xff}, res.Rows[0][2])
	assert.Nil(t, res.Rows[1][2])
}

func TestExecuteSync_EmptyResultKeepsColumns(t *testing.T) {
	ch := openSQLite(t, `CREATE TABLE b (x TEXT, y BLOB)`)

	res, err := ch.ExecuteSync(context.Background(), "SELECT * FROM b")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, res.Columns)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestExecuteSync_MalformedSQL(t *testing.T) {
	ch := openSQLite(t)

	_, err := ch.ExecuteSync(context.Background(), "SELEC nonsense")
	var qe *driver.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "SELEC nonsense", qe.SQL)
}

func TestExecuteStreaming_StopsWhenCallbackDeclines(t *testing.T) {
	ch := openSQLite(t,
		`CREATE TABLE n (v INTEGER)`,
		`WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x+1 FROM c WHERE x < 100) INSERT INTO n SELECT x FROM c`,
	)

	var seen []any
	err := ch.ExecuteStreaming(context.Background(), "SELECT v FROM n ORDER BY v", nil, func(r Row) bool {
		require.Equal(t, 1, r.Len())
		seen = append(seen, r.Values[0])
		return len(seen) < 3
	})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, seen)
}

func TestExecuteStreaming_ColumnsBeforeRows(t *testing.T) {
	d := testutil.NewFakeDriver()
	d.Set("q", testutil.FakeResult{Columns: []string{"a", "b"}, Rows: [][]any{{1, 2}, {3, 4}}})
	require.NoError(t, d.Open(context.Background()))
	ch := NewChannel(d)

	var events []string
	err := ch.ExecuteStreaming(context.Background(), "q",
		func(cols []string) bool {
			events = append(events, "columns")
			assert.Equal(t, []string{"a", "b"}, cols)
			return true
		},
		func(r Row) bool {
			events = append(events, "row")
			return true
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"columns", "row", "row"}, events)
}

func TestExecuteStreaming_CancelledContext(t *testing.T) {
	d := testutil.NewFakeDriver()
	d.Set("slow", testutil.FakeResult{
		Columns: []string{"v"},
		Rows:    [][]any{{1}, {2}, {3}},
		Delay:   50 * time.Millisecond,
	})
	require.NoError(t, d.Open(context.Background()))
	ch := NewChannel(d)

	ctx, cancel := context.WithCancel(context.Background())
	rows := 0
	err := ch.ExecuteStreaming(ctx, "slow", nil, func(Row) bool {
		rows++
		cancel()
		return true
	})
	assert.ErrorIs(t, err, context.Canceled)
	var qe *driver.QueryError
	assert.False(t, errors.As(err, &qe))
	assert.Equal(t, 1, rows)
}

func TestExecuteStreaming_RowError(t *testing.T) {
	d := testutil.NewFakeDriver()
	boom := errors.New("disk I/O error")
	d.Set("q", testutil.FakeResult{Columns: []string{"v"}, Rows: [][]any{{1}}, RowErr: boom})
	require.NoError(t, d.Open(context.Background()))

	_, err := NewChannel(d).ExecuteSync(context.Background(), "q")
	var qe *driver.QueryError
	require.ErrorAs(t, err, &qe)
	assert.ErrorIs(t, err, boom)
}
