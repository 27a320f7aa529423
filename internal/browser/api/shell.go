package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sqlite-browser/internal/browser/hub"
	"sqlite-browser/internal/session"
	"sqlite-browser/internal/stream"
)

// Command is one client to server websocket message.
type Command struct {
	Type   string `json:"type"` // open, execute, explain, select_table, refresh, close
	Path   string `json:"path,omitempty"`
	Driver string `json:"driver,omitempty"`
	SQL    string `json:"sql,omitempty"`
	Name   string `json:"name,omitempty"`
}

const rowStatusEvery = 100

var errNoDatabase = errors.New("no database is open")

// shell is the browser window of one client: one session and three grids.
type shell struct {
	h      *Handler
	client *hub.Client
	logger *slog.Logger

	sess    *session.Session
	schema  *wsGrid
	browse  *wsGrid
	results *wsGrid
}

func newShell(h *Handler, c *hub.Client) *shell {
	return &shell{
		h:       h,
		client:  c,
		logger:  slog.With("client_id", c.ID),
		schema:  newWSGrid(GridSchema, c),
		browse:  newWSGrid(GridBrowse, c),
		results: newWSGrid(GridResults, c),
	}
}

func (s *shell) handle(ctx context.Context, cmd Command) {
	var err error
	switch cmd.Type {
	case "open":
		err = s.open(ctx, cmd.Driver, cmd.Path)
	case "execute":
		err = s.execute(cmd.SQL)
	case "explain":
		err = s.explain(ctx, cmd.SQL)
	case "select_table":
		err = s.selectTable(cmd.Name)
	case "refresh":
		err = s.refresh(ctx)
	case "close":
		s.closeDatabase()
		s.status("Database closed")
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}
	if err != nil {
		s.logger.Warn("Command failed", "command", cmd.Type, "error", err)
		s.fail(err)
	}
}

func (s *shell) open(ctx context.Context, driverName, path string) error {
	if driverName == "" {
		driverName = s.h.Settings.Driver
	}
	if path == "" {
		return errors.New("open needs a path")
	}
	s.closeDatabase()

	sess, err := session.Open(ctx, session.Options{
		Driver:    driverName,
		Path:      path,
		ReadOnly:  s.h.Settings.ReadOnly,
		RetryWait: s.h.Settings.RetryWait,
		Logger:    s.logger,
	})
	if err != nil {
		return err
	}
	s.sess = sess

	if _, err := sess.ShowSchema(ctx, s.schema); err != nil {
		return err
	}
	s.sendSchema()
	s.status("Database loaded successfully")
	return nil
}

func (s *shell) execute(sql string) error {
	if s.sess == nil {
		return errNoDatabase
	}
	return s.sess.RunQueryStreaming(sql, s.results, s.callbacks())
}

func (s *shell) explain(ctx context.Context, sql string) error {
	if s.sess == nil {
		return errNoDatabase
	}
	elapsed, err := s.sess.Explain(ctx, sql, s.results)
	if err != nil {
		return err
	}
	s.status(completeText(elapsed))
	return nil
}

func (s *shell) selectTable(name string) error {
	if s.sess == nil {
		return errNoDatabase
	}
	return s.sess.BrowseTable(name, s.browse, s.callbacks())
}

func (s *shell) refresh(ctx context.Context) error {
	if s.sess == nil {
		return errNoDatabase
	}
	if err := s.sess.Refresh(ctx); err != nil {
		return err
	}
	if _, err := s.sess.ShowSchema(ctx, s.schema); err != nil {
		return err
	}
	s.sendSchema()
	return nil
}

// closeDatabase releases the session and empties every grid.
func (s *shell) closeDatabase() {
	if s.sess == nil {
		return
	}
	if err := s.sess.Close(); err != nil {
		s.logger.Warn("Closing database failed", "error", err)
	}
	s.sess = nil

	_ = s.client.Loop().Invoke(func() {
		s.schema.Clear()
		s.browse.Clear()
		s.results.Clear()
	})
}

// callbacks report streaming progress. They run on the client's loop.
func (s *shell) callbacks() stream.Callbacks {
	rows := 0
	return stream.Callbacks{
		OnRow: func(n int) {
			rows = n
			if n%rowStatusEvery == 0 {
				s.send(hub.Message{Type: hub.TypeStatus, Text: loadedText(n)})
			}
		},
		OnComplete: func(elapsed time.Duration) {
			if rows%rowStatusEvery != 0 || rows == 0 {
				s.send(hub.Message{Type: hub.TypeStatus, Text: loadedText(rows)})
			}
			s.send(hub.Message{Type: hub.TypeStatus, Text: completeText(elapsed)})
		},
		OnError: func(err error) {
			s.send(hub.Message{Type: hub.TypeError, Text: err.Error()})
		},
	}
}

func (s *shell) sendSchema() {
	schema := s.sess.Schema()
	tables := s.sess.Tables()
	s.post(hub.Message{Type: hub.TypeSchema, Schema: schema, Tables: tables})
}

func (s *shell) status(text string) {
	s.post(hub.Message{Type: hub.TypeStatus, Text: text})
}

func (s *shell) fail(err error) {
	s.post(hub.Message{Type: hub.TypeError, Text: err.Error()})
}

// send writes from the client's loop.
func (s *shell) send(msg hub.Message) {
	if err := s.client.Send(msg); err != nil {
		s.logger.Debug("Send failed", "error", err)
	}
}

// post writes from outside the client's loop.
func (s *shell) post(msg hub.Message) {
	if err := s.client.Post(msg); err != nil {
		s.logger.Debug("Post failed", "error", err)
	}
}

func loadedText(n int) string {
	return fmt.Sprintf("Loaded rows: %d", n)
}

func completeText(elapsed time.Duration) string {
	return fmt.Sprintf("Query complete in %d ms", elapsed.Milliseconds())
}
