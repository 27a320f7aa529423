package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlite-browser/internal/browser/hub"
	"sqlite-browser/internal/storage"
	"sqlite-browser/internal/testutil"
	"sqlite-browser/internal/worker"
)

type testServer struct {
	*httptest.Server
	handler *Handler
}

func newServer(t *testing.T, settings Settings) *testServer {
	t.Helper()
	pool := worker.NewPool(1, 1, worker.ReadOnlyOpener, storage.NewLocalProvider(t.TempDir()), false)
	pool.Start()
	t.Cleanup(pool.Stop)

	if settings.Driver == "" {
		settings.Driver = "sqlite3"
	}
	if settings.AllowedOrigins == nil {
		settings.AllowedOrigins = []string{"*"}
	}
	h := NewHandler(hub.NewHub(), pool, settings)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, handler: h}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/browser/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil collects messages until stop matches one, which is included.
func readUntil(t *testing.T, conn *websocket.Conn, stop func(hub.Message) bool) []hub.Message {
	t.Helper()
	var msgs []hub.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var m hub.Message
		require.NoError(t, conn.ReadJSON(&m))
		msgs = append(msgs, m)
		if stop(m) {
			return msgs
		}
	}
}

func statusPrefix(prefix string) func(hub.Message) bool {
	return func(m hub.Message) bool {
		return m.Type == hub.TypeStatus && strings.HasPrefix(m.Text, prefix)
	}
}

func isError(m hub.Message) bool { return m.Type == hub.TypeError }

// rebuild replays the grid mutations for name.
func rebuild(msgs []hub.Message, name string) (columns []string, rows [][]any) {
	for _, m := range msgs {
		if m.Type != hub.TypeGrid || m.Grid != name {
			continue
		}
		switch m.Op {
		case hub.OpClear:
			columns, rows = nil, nil
		case hub.OpAddColumn:
			columns = append(columns, m.Name)
		case hub.OpAddRow:
			rows = append(rows, make([]any, len(columns)))
		case hub.OpSetCell:
			rows[*m.Row][*m.Col] = m.Value
		}
	}
	return columns, rows
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

func TestBrowser_OpenBrowseAndQuery(t *testing.T) {
	srv := newServer(t, Settings{DefaultPath: testutil.TwoTables(t), RetryWait: time.Second})
	conn := srv.dial(t)

	msgs := readUntil(t, conn, statusPrefix("Database loaded successfully"))
	cols, rows := rebuild(msgs, GridSchema)
	assert.Equal(t, []string{"type", "name", "tbl_name", "rootpage", "sql"}, cols)
	assert.Len(t, rows, 2)

	var schema *hub.Message
	for i := range msgs {
		if msgs[i].Type == hub.TypeSchema {
			schema = &msgs[i]
		}
	}
	require.NotNil(t, schema)
	assert.Equal(t, []string{"a", "b"}, schema.Tables)

	send(t, conn, Command{Type: "select_table", Name: "a"})
	msgs = readUntil(t, conn, statusPrefix("Query complete in"))
	cols, rows = rebuild(msgs, GridBrowse)
	assert.Equal(t, []string{"id", "name", "score"}, cols)
	assert.Equal(t, [][]any{{float64(1), "ada", 1.5}, {float64(2), "bob", 2.5}}, rows)
	assert.True(t, containsStatus(msgs, "Loaded rows: 2"))

	send(t, conn, Command{Type: "execute", SQL: "SELECT * FROM b"})
	msgs = readUntil(t, conn, statusPrefix("Query complete in"))
	cols, rows = rebuild(msgs, GridResults)
	assert.Equal(t, []string{"x", "y"}, cols)
	assert.Empty(t, rows)
	assert.True(t, containsStatus(msgs, "Loaded rows: 0"))

	send(t, conn, Command{Type: "explain", SQL: "SELECT * FROM a"})
	msgs = readUntil(t, conn, statusPrefix("Query complete in"))
	cols, _ = rebuild(msgs, GridResults)
	assert.Contains(t, cols, "opcode")
}

func TestBrowser_Errors(t *testing.T) {
	srv := newServer(t, Settings{})
	conn := srv.dial(t)

	send(t, conn, Command{Type: "execute", SQL: "SELECT 1"})
	msgs := readUntil(t, conn, isError)
	assert.Equal(t, errNoDatabase.Error(), msgs[len(msgs)-1].Text)

	send(t, conn, Command{Type: "open", Path: filepath.Join(t.TempDir(), "missing.db")})
	msgs = readUntil(t, conn, isError)
	assert.Contains(t, msgs[len(msgs)-1].Text, "does not exist")

	send(t, conn, Command{Type: "dance"})
	msgs = readUntil(t, conn, isError)
	assert.Contains(t, msgs[len(msgs)-1].Text, "unknown command")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msgs = readUntil(t, conn, isError)
	assert.Equal(t, "malformed command", msgs[len(msgs)-1].Text)

	send(t, conn, Command{Type: "open", Path: testutil.TwoTables(t)})
	readUntil(t, conn, statusPrefix("Database loaded successfully"))

	send(t, conn, Command{Type: "execute", SQL: "SELECT * FROM nope"})
	msgs = readUntil(t, conn, isError)
	assert.Contains(t, msgs[len(msgs)-1].Text, "no such table")

	send(t, conn, Command{Type: "close"})
	msgs = readUntil(t, conn, statusPrefix("Database closed"))
	for _, name := range []string{GridSchema, GridBrowse, GridResults} {
		cols, rows := rebuild(msgs, name)
		assert.Empty(t, cols, name)
		assert.Empty(t, rows, name)
	}
}

func TestBrowser_ReadOnlyRejectsWrites(t *testing.T) {
	srv := newServer(t, Settings{DefaultPath: testutil.TwoTables(t), ReadOnly: true})
	conn := srv.dial(t)
	readUntil(t, conn, statusPrefix("Database loaded successfully"))

	send(t, conn, Command{Type: "execute", SQL: "DELETE FROM a"})
	msgs := readUntil(t, conn, isError)
	assert.Contains(t, msgs[len(msgs)-1].Text, "read-only")
}

func TestBrowser_ReopenClearsSchema(t *testing.T) {
	srv := newServer(t, Settings{DefaultPath: testutil.TwoTables(t)})
	conn := srv.dial(t)
	readUntil(t, conn, statusPrefix("Database loaded successfully"))

	other := testutil.SQLiteFile(t, `CREATE TABLE only_one (v INTEGER)`)
	send(t, conn, Command{Type: "open", Path: other})
	msgs := readUntil(t, conn, statusPrefix("Database loaded successfully"))

	_, rows := rebuild(msgs, GridSchema)
	require.Len(t, rows, 1)
	assert.Equal(t, "only_one", rows[0][1])
}

func TestExport_Lifecycle(t *testing.T) {
	db := testutil.TwoTables(t)
	srv := newServer(t, Settings{})
	conn := srv.dial(t)
	readUntil(t, conn, func(m hub.Message) bool { return m.Type == hub.TypeClients })

	body, _ := json.Marshal(ExportRequest{Path: db, Query: "SELECT * FROM a", Format: "json"})
	resp, err := http.Post(srv.URL+"/export", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	id := created["job_id"]
	require.NotEmpty(t, id)

	msgs := readUntil(t, conn, func(m hub.Message) bool { return m.Type == hub.TypeExport })
	job, ok := msgs[len(msgs)-1].Job.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, id, job["id"])

	statusResp, err := http.Get(srv.URL + "/export/status?id=" + id)
	require.NoError(t, err)
	defer statusResp.Body.Close()
	require.Equal(t, http.StatusOK, statusResp.StatusCode)

	var info worker.JobInfo
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&info))
	assert.Equal(t, worker.StatusCompleted, info.Status, info.Error)
	assert.Equal(t, int64(2), info.Rows)
}

func TestExport_BadRequests(t *testing.T) {
	srv := newServer(t, Settings{})

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/export", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/export", "{", http.StatusBadRequest},
		{http.MethodPost, "/export", `{"path":"x.db"}`, http.StatusBadRequest},
		{http.MethodPost, "/export", `{"query":"SELECT 1"}`, http.StatusBadRequest},
		{http.MethodPost, "/export", `{"path":"x.db","query":"SELECT 1","format":"yaml"}`, http.StatusBadRequest},
		{http.MethodGet, "/export/status", "", http.StatusBadRequest},
		{http.MethodGet, "/export/status?id=nope", "", http.StatusNotFound},
		{http.MethodPost, "/export/status?id=nope", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		req, err := http.NewRequest(tc.method, srv.URL+tc.path, strings.NewReader(tc.body))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, tc.want, resp.StatusCode, "%s %s %s", tc.method, tc.path, tc.body)
	}
}

func TestBrowser_RejectsForeignOrigin(t *testing.T) {
	srv := newServer(t, Settings{AllowedOrigins: []string{"http://ok.example"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/browser/stream"

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func containsStatus(msgs []hub.Message, text string) bool {
	for _, m := range msgs {
		if m.Type == hub.TypeStatus && m.Text == text {
			return true
		}
	}
	return false
}
