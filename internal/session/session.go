// Package session ties an open database to its query channel and streaming
// controller, and keeps a snapshot of the database schema.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"sqlite-browser/internal/driver"
	"sqlite-browser/internal/exporter"
	"sqlite-browser/internal/grid"
	"sqlite-browser/internal/query"
	"sqlite-browser/internal/security"
	"sqlite-browser/internal/stream"
)

var ErrClosed = errors.New("session is closed")

// Options configures Open.
type Options struct {
	// Driver names the engine; empty means SQLite via mattn/go-sqlite3.
	Driver string
	// Path is the database file, or a DSN/URI for server engines.
	Path     string
	ReadOnly bool
	// RetryWait bounds how long a new streaming query waits for the one it
	// replaces. Zero uses stream.DefaultRetryWait.
	RetryWait time.Duration
	Logger    *slog.Logger
}

// Session is one open database. Its methods must not be called from inside
// a grid's Invoke.
type Session struct {
	drv      driver.Driver
	ch       *query.Channel
	ctrl     *stream.Controller
	readOnly bool
	logger   *slog.Logger

	mu     sync.RWMutex
	schema []SchemaEntry

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open connects to the database and reads its schema once. Connection
// failures are *driver.ConnectionError.
func Open(ctx context.Context, opts Options) (*Session, error) {
	drv, err := driver.New(opts.Driver, opts.Path, driver.Options{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, &driver.ConnectionError{Driver: opts.Driver, Target: opts.Path, Err: err}
	}
	return OpenDriver(ctx, drv, opts)
}

// OpenDriver is Open for a driver built by the caller.
func OpenDriver(ctx context.Context, drv driver.Driver, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := drv.Open(ctx); err != nil {
		var ce *driver.ConnectionError
		if !errors.As(err, &ce) {
			err = &driver.ConnectionError{Driver: drv.Name(), Target: opts.Path, Err: err}
		}
		return nil, err
	}

	ch := query.NewChannel(drv)
	s := &Session{
		drv:      drv,
		ch:       ch,
		ctrl:     stream.NewController(ch, stream.Options{RetryWait: opts.RetryWait, Logger: logger}),
		readOnly: opts.ReadOnly,
		logger:   logger,
	}

	if _, err := s.ListSchemaEntries(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	logger.Info("Database opened", "driver", drv.Name(), "entries", len(s.Schema()))
	return s, nil
}

// Close stops any streaming query and releases the database. It is safe to
// call more than once and on a zero Session.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.ctrl != nil {
			s.ctrl.Stop()
		}
		if s.drv != nil {
			s.closeErr = s.drv.Close()
			s.logger.Info("Database closed", "driver", s.drv.Name())
		}
	})
	return s.closeErr
}

// Driver returns the engine name.
func (s *Session) Driver() string {
	if s.drv == nil {
		return ""
	}
	return s.drv.Name()
}

// StreamState reports the streaming controller's state.
func (s *Session) StreamState() stream.State {
	if s.ctrl == nil {
		return stream.Idle
	}
	return s.ctrl.State()
}

// ListSchemaEntries reads the master catalog and replaces the schema snapshot.
func (s *Session) ListSchemaEntries(ctx context.Context) ([]SchemaEntry, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	res, err := s.ch.ExecuteSync(ctx, s.drv.CatalogQuery())
	if err != nil {
		return nil, err
	}
	entries := schemaFromRows(res.Columns, res.Rows)

	s.mu.Lock()
	s.schema = entries
	s.mu.Unlock()

	return append([]SchemaEntry(nil), entries...), nil
}

// Refresh re-reads the schema.
func (s *Session) Refresh(ctx context.Context) error {
	_, err := s.ListSchemaEntries(ctx)
	return err
}

// Schema returns the snapshot taken at open or at the last refresh.
func (s *Session) Schema() []SchemaEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SchemaEntry(nil), s.schema...)
}

// Tables returns the table names of the snapshot in catalog order.
func (s *Session) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, e := range s.schema {
		if e.IsTable() {
			names = append(names, e.Name)
		}
	}
	return names
}

// ShowSchema writes the raw catalog into sink.
func (s *Session) ShowSchema(ctx context.Context, sink grid.Sink) (time.Duration, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	return s.runSync(ctx, s.drv.CatalogQuery(), sink)
}

// RunQuerySync runs sql to completion and replaces the contents of sink with
// the result in a single grid action. A streaming query into the same sink
// is cancelled first. The duration covers the query, not the grid update.
func (s *Session) RunQuerySync(ctx context.Context, sql string, sink grid.Sink) (time.Duration, error) {
	if err := s.check(sql); err != nil {
		return 0, err
	}
	return s.runSync(ctx, sql, sink)
}

// Explain runs the engine's explain form of sql into sink.
func (s *Session) Explain(ctx context.Context, sql string, sink grid.Sink) (time.Duration, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}
	q, err := s.drv.ExplainQuery(sql)
	if err != nil {
		return 0, driver.WrapQuery(sql, err)
	}
	return s.runSync(ctx, q, sink)
}

// RunQueryStreaming streams sql into sink in the background, replacing any
// streaming query in flight. Engine errors arrive through cb.OnError.
func (s *Session) RunQueryStreaming(sql string, sink grid.Sink, cb stream.Callbacks) error {
	if err := s.check(sql); err != nil {
		return err
	}
	return s.ctrl.Run(stream.Request{SQL: sql, Sink: sink, Callbacks: cb})
}

// BrowseTable streams every row of table into sink.
func (s *Session) BrowseTable(table string, sink grid.Sink, cb stream.Callbacks) error {
	if err := s.usable(); err != nil {
		return err
	}
	return s.ctrl.Run(stream.Request{SQL: s.drv.BrowseQuery(table), Sink: sink, Callbacks: cb})
}

// Export streams the result of sql into enc. The caller closes enc.
func (s *Session) Export(ctx context.Context, sql string, enc exporter.RowEncoder) (*exporter.ExportResult, error) {
	if err := s.check(sql); err != nil {
		return nil, err
	}
	return exporter.NewStreamer(s.ch).StreamQuery(ctx, sql, enc)
}

func (s *Session) runSync(ctx context.Context, sql string, sink grid.Sink) (time.Duration, error) {
	s.ctrl.Preempt(sink)

	start := time.Now()
	res, err := s.ch.ExecuteSync(ctx, sql)
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)

	if err := sink.Invoke(func() { grid.Fill(sink, res.Columns, res.Rows) }); err != nil {
		return elapsed, fmt.Errorf("update grid: %w", err)
	}
	s.logger.Debug("Query complete", "sql", sql, "rows", len(res.Rows), "duration", elapsed)
	return elapsed, nil
}

func (s *Session) usable() error {
	if s.drv == nil || s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// check applies the read-only guard to SQL engines.
func (s *Session) check(sql string) error {
	if err := s.usable(); err != nil {
		return err
	}
	if !s.readOnly || s.drv.Name() == driver.DriverMongo {
		return nil
	}
	if err := security.CheckReadOnly(sql); err != nil {
		return &driver.QueryError{SQL: sql, Err: err}
	}
	return nil
}
