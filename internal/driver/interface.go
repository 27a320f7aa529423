package driver

import (
	"context"
)

// Driver abstracts the database engine behind a session.
type Driver interface {
	// Name returns the driver name (e.g., "sqlite3", "mysql", "postgres").
	Name() string

	// Open connects to the database and verifies it is usable.
	// Failures are reported as *ConnectionError.
	Open(ctx context.Context) error

	// Query executes a query and returns a RowStreamer to iterate over results.
	Query(ctx context.Context, query string) (RowStreamer, error)

	// CatalogQuery returns the statement that lists the master catalog.
	// Its result has the columns type, name, tbl_name, rootpage, sql.
	CatalogQuery() string

	// BrowseQuery returns the statement that selects every row of table.
	BrowseQuery(table string) string

	// ExplainQuery wraps query in the engine's explain form.
	ExplainQuery(query string) (string, error)

	// Close closes the database connection.
	Close() error
}

// RowStreamer iterates over query results.
// It is designed to be memory-efficient and stream-oriented.
type RowStreamer interface {
	// Columns returns the column names. Safe to call after Query returns.
	Columns() ([]string, error)

	// Next advances to the next row. Returns false when there are no more rows or an error occurs.
	Next() bool

	// Scan copies the columns in the current row into the values pointed at by dest.
	// The number of values must be the same as the number of columns.
	Scan(dest ...interface{}) error

	// Err returns the error, if any, that was encountered during iteration.
	Err() error

	// Close closes the streamer and frees resources.
	Close() error
}

// Options tunes how a driver connects.
type Options struct {
	// ReadOnly opens the database without write access where the engine supports it.
	ReadOnly bool
	// MaxOpenConns bounds the database/sql pool. Zero uses the driver default.
	MaxOpenConns int
}
