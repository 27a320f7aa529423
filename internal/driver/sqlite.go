package driver

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	// DriverSQLite3 is the cgo driver from mattn/go-sqlite3.
	DriverSQLite3 = "sqlite3"
	// DriverSQLite is the pure Go driver from modernc.org/sqlite.
	DriverSQLite = "sqlite"

	defaultBusyTimeout     = "5000" // 5 seconds
	defaultSQLiteOpenConns = 4
)

// SQLiteDriver opens a single SQLite database file.
type SQLiteDriver struct {
	sqlDB
	path string
}

// NewSQLiteDriver creates a driver for the file at path. name selects the
// underlying database/sql driver: DriverSQLite3 or DriverSQLite.
func NewSQLiteDriver(name, path string, opts Options) *SQLiteDriver {
	if name == "" {
		name = DriverSQLite3
	}
	if opts.MaxOpenConns <= 0 {
		// A worker parked on a grid must not starve a synchronous query.
		opts.MaxOpenConns = defaultSQLiteOpenConns
	}
	return &SQLiteDriver{
		sqlDB: sqlDB{
			driverName: name,
			dsn:        buildSQLiteDSN(name, path, opts.ReadOnly),
			target:     path,
			opts:       opts,
		},
		path: path,
	}
}

// Open verifies the file exists and is a SQLite database. It never creates
// an empty database for a mistyped path.
func (d *SQLiteDriver) Open(ctx context.Context) error {
	if d.path != ":memory:" {
		info, err := os.Stat(d.path)
		if err != nil {
			if os.IsNotExist(err) {
				err = ErrDatabaseNotExists
			}
			return &ConnectionError{Driver: d.driverName, Target: d.path, Err: err}
		}
		if info.IsDir() {
			return &ConnectionError{Driver: d.driverName, Target: d.path, Err: fmt.Errorf("%s is a directory", d.path)}
		}
	}
	// Reading the catalog surfaces "file is not a database" and lock errors at open time.
	return d.connect(ctx, "SELECT count(*) FROM sqlite_master")
}

func (d *SQLiteDriver) CatalogQuery() string {
	return "SELECT type, name, tbl_name, rootpage, sql FROM sqlite_master"
}

func (d *SQLiteDriver) BrowseQuery(table string) string {
	return "SELECT * FROM " + quoteIdent(table, '"')
}

// buildSQLiteDSN constructs the DSN for either SQLite driver.
func buildSQLiteDSN(name, path string, readOnly bool) string {
	params := url.Values{}
	switch name {
	case DriverSQLite:
		params.Add("_pragma", "busy_timeout("+defaultBusyTimeout+")")
	default:
		params.Set("_busy_timeout", defaultBusyTimeout)
	}
	if readOnly {
		params.Set("mode", "ro")
	}
	if path == ":memory:" {
		return "file::memory:?cache=shared&" + params.Encode()
	}
	return "file:" + uriPathEscaper.Replace(path) + "?" + params.Encode()
}

// uriPathEscaper escapes the characters SQLite gives meaning to in the path
// of a file: URI, so the named file is the one opened.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// quoteIdent quotes an identifier, doubling any embedded quote characters.
func quoteIdent(name string, q byte) string {
	s := string(q)
	return s + strings.ReplaceAll(name, s, s+s) + s
}
