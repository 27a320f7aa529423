package driver

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen           = errors.New("database is not open")
	ErrUnsupported       = errors.New("operation not supported by driver")
	ErrUnknownDriver     = errors.New("unknown driver")
	ErrDatabaseNotExists = errors.New("database file does not exist")
)

// ConnectionError reports a failure to open or close a database.
type ConnectionError struct {
	Driver string
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: cannot open %q: %v", e.Driver, e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a statement the engine rejected or failed to run.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// WrapQuery wraps err as a *QueryError unless it already is one.
func WrapQuery(sql string, err error) error {
	if err == nil {
		return nil
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	return &QueryError{SQL: sql, Err: err}
}
