package driver

import (
	"context"

	_ "github.com/lib/pq"
)

// DriverPostgres is the registered name of lib/pq.
const DriverPostgres = "postgres"

type PostgresDriver struct {
	sqlDB
}

func NewPostgresDriver(dsn string, opts Options) *PostgresDriver {
	return &PostgresDriver{sqlDB: sqlDB{
		driverName: DriverPostgres,
		dsn:        dsn,
		target:     maskDSN(dsn),
		opts:       opts,
	}}
}

func (d *PostgresDriver) Open(ctx context.Context) error {
	return d.connect(ctx, "")
}

// CatalogQuery lists tables, views and indexes of the current schema in the
// sqlite_master shape.
func (d *PostgresDriver) CatalogQuery() string {
	return `SELECT
		CASE table_type WHEN 'BASE TABLE' THEN 'table' WHEN 'VIEW' THEN 'view' ELSE lower(table_type) END AS type,
		table_name AS name,
		table_name AS tbl_name,
		'' AS rootpage,
		'' AS sql
	FROM information_schema.tables
	WHERE table_schema = current_schema()
	UNION ALL
	SELECT 'index', indexname, tablename, '', indexdef
	FROM pg_indexes
	WHERE schemaname = current_schema()`
}

func (d *PostgresDriver) BrowseQuery(table string) string {
	return "SELECT * FROM " + quoteIdent(table, '"')
}
