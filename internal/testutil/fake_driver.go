package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sqlite-browser/internal/driver"
)

// FakeResult scripts the answer of FakeDriver to one statement.
type FakeResult struct {
	Columns []string
	Rows    [][]any
	// QueryErr is returned by Query itself.
	QueryErr error
	// RowErr is reported by Err once the rows are exhausted.
	RowErr error
	// Delay is waited before each row; the wait honours ctx.
	Delay time.Duration
	// Block, when set, is received from before each row without looking at
	// ctx, like an engine that will not abandon a statement.
	Block <-chan struct{}
}

// FakeDriver is an in-memory driver.Driver answering scripted statements.
type FakeDriver struct {
	mu      sync.Mutex
	results map[string]FakeResult
	queries []string
	opened  bool
	closes  int

	OpenErr error
}

var _ driver.Driver = (*FakeDriver)(nil)

// NewFakeDriver returns a driver with an empty catalog.
func NewFakeDriver() *FakeDriver {
	d := &FakeDriver{results: make(map[string]FakeResult)}
	d.Set(d.CatalogQuery(), FakeResult{Columns: []string{"type", "name", "tbl_name", "rootpage", "sql"}})
	return d
}

// Set scripts the result of sql.
func (d *FakeDriver) Set(sql string, r FakeResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results[sql] = r
}

// Queries returns every statement received so far.
func (d *FakeDriver) Queries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queries...)
}

// Closes reports how many times Close released the driver.
func (d *FakeDriver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *FakeDriver) Name() string { return "fake" }

func (d *FakeDriver) Open(ctx context.Context) error {
	if d.OpenErr != nil {
		return &driver.ConnectionError{Driver: "fake", Target: "memory", Err: d.OpenErr}
	}
	d.mu.Lock()
	d.opened = true
	d.mu.Unlock()
	return nil
}

func (d *FakeDriver) Query(ctx context.Context, query string) (driver.RowStreamer, error) {
	d.mu.Lock()
	d.queries = append(d.queries, query)
	r, ok := d.results[query]
	opened := d.opened
	d.mu.Unlock()

	if !opened {
		return nil, driver.ErrNotOpen
	}
	if !ok {
		return nil, fmt.Errorf("no such table or statement: %s", query)
	}
	if r.QueryErr != nil {
		return nil, r.QueryErr
	}
	return &fakeStreamer{ctx: ctx, res: r, pos: -1}, nil
}

func (d *FakeDriver) CatalogQuery() string { return "catalog" }

func (d *FakeDriver) BrowseQuery(table string) string { return "browse:" + table }

func (d *FakeDriver) ExplainQuery(query string) (string, error) { return "explain:" + query, nil }

func (d *FakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		d.opened = false
		d.closes++
	}
	return nil
}

type fakeStreamer struct {
	ctx    context.Context
	res    FakeResult
	pos    int
	err    error
	closed bool
}

func (s *fakeStreamer) Columns() ([]string, error) { return s.res.Columns, nil }

func (s *fakeStreamer) Next() bool {
	if s.closed || s.err != nil {
		return false
	}
	if s.res.Block != nil {
		<-s.res.Block
	}
	if s.res.Delay > 0 {
		select {
		case <-time.After(s.res.Delay):
		case <-s.ctx.Done():
		}
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.pos++
	if s.pos >= len(s.res.Rows) {
		s.err = s.res.RowErr
		return false
	}
	return true
}

func (s *fakeStreamer) Scan(dest ...interface{}) error {
	if s.pos < 0 || s.pos >= len(s.res.Rows) {
		return errors.New("scan called without a row")
	}
	row := s.res.Rows[s.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destination arguments, got %d", len(row), len(dest))
	}
	for i, v := range row {
		p, ok := dest[i].(*interface{})
		if !ok {
			return fmt.Errorf("unsupported scan destination %T", dest[i])
		}
		*p = v
	}
	return nil
}

func (s *fakeStreamer) Err() error { return s.err }

func (s *fakeStreamer) Close() error {
	s.closed = true
	return nil
}
