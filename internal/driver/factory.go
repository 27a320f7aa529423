package driver

import (
	"fmt"
	"regexp"
	"strings"
)

var reDSNPass = regexp.MustCompile(`(://)([^:/@]+):([^@]+)(@)`)

// New returns the driver registered under name for target, which is a file
// path for SQLite and a DSN or URI otherwise.
func New(name, target string, opts Options) (Driver, error) {
	switch strings.ToLower(name) {
	case "", DriverSQLite3:
		return NewSQLiteDriver(DriverSQLite3, target, opts), nil
	case DriverSQLite:
		return NewSQLiteDriver(DriverSQLite, target, opts), nil
	case DriverMySQL:
		return NewMySQLDriver(target, opts), nil
	case DriverPostgres, "postgresql":
		return NewPostgresDriver(target, opts), nil
	case DriverMongo, "mongodb":
		return NewMongoDriver(target), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
}

// maskDSN hides credentials so connection errors can be shown to users.
func maskDSN(dsn string) string {
	if strings.Contains(dsn, "://") {
		return reDSNPass.ReplaceAllString(dsn, "$1$2:***$4")
	}
	// go-sql-driver form: user:pass@tcp(host)/db
	if at := strings.LastIndex(dsn, "@"); at > 0 {
		if colon := strings.Index(dsn[:at], ":"); colon >= 0 {
			return dsn[:colon+1] + "***" + dsn[at:]
		}
	}
	return dsn
}
