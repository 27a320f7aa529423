package driver

import (
	"context"

	_ "github.com/go-sql-driver/mysql"
)

// DriverMySQL is the registered name of go-sql-driver/mysql.
const DriverMySQL = "mysql"

type MySQLDriver struct {
	sqlDB
}

func NewMySQLDriver(dsn string, opts Options) *MySQLDriver {
	return &MySQLDriver{sqlDB: sqlDB{
		driverName: DriverMySQL,
		dsn:        dsn,
		target:     maskDSN(dsn),
		opts:       opts,
	}}
}

func (d *MySQLDriver) Open(ctx context.Context) error {
	return d.connect(ctx, "")
}

// CatalogQuery maps information_schema onto the sqlite_master shape.
func (d *MySQLDriver) CatalogQuery() string {
	return `SELECT
		CASE table_type WHEN 'BASE TABLE' THEN 'table' WHEN 'VIEW' THEN 'view' ELSE LOWER(table_type) END AS type,
		table_name AS name,
		table_name AS tbl_name,
		'' AS rootpage,
		'' AS ` + "`sql`" + `
	FROM information_schema.tables
	WHERE table_schema = DATABASE()
	ORDER BY table_name`
}

func (d *MySQLDriver) BrowseQuery(table string) string {
	return "SELECT * FROM " + quoteIdent(table, '`')
}
