// Package query runs statements against a single driver, either fully
// materialised or streamed row by row.
package query

import (
	"context"
	"fmt"
	"unicode/utf8"

	"sqlite-browser/internal/driver"
)

// Row is one result row. Values has the same length as Columns.
type Row struct {
	Columns []string
	Values  []any
}

// Len returns the row width.
func (r Row) Len() int { return len(r.Values) }

// Result is a fully materialised query result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Channel wraps the connection of one session.
type Channel struct {
	drv driver.Driver
}

// NewChannel creates a channel over an opened driver.
func NewChannel(drv driver.Driver) *Channel {
	return &Channel{drv: drv}
}

// ExecuteSync runs sql and returns every row. Failures are *driver.QueryError.
func (c *Channel) ExecuteSync(ctx context.Context, sql string) (*Result, error) {
	res := &Result{}
	err := c.ExecuteStreaming(ctx, sql,
		func(columns []string) bool {
			res.Columns = columns
			return true
		},
		func(row Row) bool {
			res.Rows = append(res.Rows, row.Values)
			return true
		})
	if err != nil {
		return nil, err
	}
	if res.Rows == nil {
		res.Rows = [][]any{}
	}
	return res, nil
}

// ExecuteStreaming runs sql and hands rows to onRow in engine order.
// onColumns is called once before the first row, also for empty results.
// Iteration stops as soon as either callback returns false.
//
// A cancelled ctx is reported as ctx.Err(), unwrapped, so callers can tell
// their own cancellation from engine failures.
func (c *Channel) ExecuteStreaming(ctx context.Context, sql string, onColumns func([]string) bool, onRow func(Row) bool) error {
	rows, err := c.drv.Query(ctx, sql)
	if err != nil {
		return c.fail(ctx, sql, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return c.fail(ctx, sql, fmt.Errorf("failed to get columns: %w", err))
	}
	if onColumns != nil && !onColumns(columns) {
		return nil
	}

	// Scanning into *interface{} copies driver buffers, so values outlive Next.
	colCount := len(columns)
	scanArgs := make([]interface{}, colCount)

	for rows.Next() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		values := make([]interface{}, colCount)
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return c.fail(ctx, sql, fmt.Errorf("row scan failed: %w", err))
		}
		normalize(values)

		if !onRow(Row{Columns: columns, Values: values}) {
			return nil
		}
	}

	if err := rows.Err(); err != nil {
		return c.fail(ctx, sql, err)
	}
	return nil
}

// fail classifies err. Once ctx is done any engine error (SQLite reports
// "interrupted") is a consequence of the cancellation.
func (c *Channel) fail(ctx context.Context, sql string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return driver.WrapQuery(sql, err)
}

// normalize turns text returned as []byte into strings; BLOBs that are not
// valid text stay []byte.
func normalize(values []any) {
	for i, v := range values {
		if b, ok := v.([]byte); ok && isText(b) {
			values[i] = string(b)
		}
	}
}

func isText(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return utf8.Valid(b)
}
