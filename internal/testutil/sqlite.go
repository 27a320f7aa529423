// Package testutil provides shared fixtures for tests across the codebase:
// throwaway SQLite files and a scriptable fake driver.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// SQLiteFile creates a database file in t.TempDir() and runs stmts against it.
func SQLiteFile(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	// An empty file is not a database yet; force the header to be written.
	_, err = db.Exec("PRAGMA user_version = 1")
	require.NoError(t, err)
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return path
}

// TwoTables returns a database with table a (2 rows, 3 columns) and an
// empty table b (2 columns).
func TwoTables(t *testing.T) string {
	t.Helper()
	return SQLiteFile(t,
		`CREATE TABLE a (id INTEGER PRIMARY KEY, name TEXT, score REAL)`,
		`INSERT INTO a (id, name, score) VALUES (1, 'ada', 1.5), (2, 'bob', 2.5)`,
		`CREATE TABLE b (x TEXT, y BLOB)`,
	)
}
