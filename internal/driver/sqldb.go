package driver

import (
	"context"
	"database/sql"
	"time"
)

// sqlDB holds the database/sql pool shared by the SQL drivers.
type sqlDB struct {
	driverName string
	dsn        string
	target     string
	opts       Options
	db         *sql.DB
}

func (d *sqlDB) Name() string {
	return d.driverName
}

// connect opens the pool and runs check to make sure the target is a usable database.
func (d *sqlDB) connect(ctx context.Context, check string) error {
	if d.db != nil {
		return nil
	}

	db, err := sql.Open(d.driverName, d.dsn)
	if err != nil {
		return &ConnectionError{Driver: d.driverName, Target: d.target, Err: err}
	}
	if d.opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(d.opts.MaxOpenConns)
		db.SetMaxIdleConns(d.opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return &ConnectionError{Driver: d.driverName, Target: d.target, Err: err}
	}
	if check != "" {
		var n int64
		if err := db.QueryRowContext(ctx, check).Scan(&n); err != nil {
			_ = db.Close()
			return &ConnectionError{Driver: d.driverName, Target: d.target, Err: err}
		}
	}

	d.db = db
	return nil
}

func (d *sqlDB) Query(ctx context.Context, query string) (RowStreamer, error) {
	if d.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	// *sql.Rows satisfies RowStreamer as-is.
	return rows, nil
}

func (d *sqlDB) ExplainQuery(query string) (string, error) {
	return "EXPLAIN " + query, nil
}

func (d *sqlDB) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if err != nil {
		return &ConnectionError{Driver: d.driverName, Target: d.target, Err: err}
	}
	return nil
}
