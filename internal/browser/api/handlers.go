package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"sqlite-browser/internal/browser/hub"
	"sqlite-browser/internal/browser/middleware"
	"sqlite-browser/internal/exporter"
	"sqlite-browser/internal/worker"

	"github.com/gorilla/websocket"
)

// Settings are the server-wide defaults applied to every client.
type Settings struct {
	// Driver is used when a client does not name one.
	Driver string
	// DefaultPath, when set, is opened for every new client.
	DefaultPath    string
	ReadOnly       bool
	RetryWait      time.Duration
	ExportTimeout  time.Duration
	AllowedOrigins []string
}

type Handler struct {
	Hub      *hub.Hub
	Pool     *worker.Pool
	Settings Settings

	upgrader websocket.Upgrader
}

func NewHandler(h *hub.Hub, pool *worker.Pool, settings Settings) *Handler {
	if settings.ExportTimeout <= 0 {
		settings.ExportTimeout = 15 * time.Minute
	}
	handler := &Handler{
		Hub:      h,
		Pool:     pool,
		Settings: settings,
	}
	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(settings.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return handler
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/browser/stream", h.HandleBrowser)
	mux.HandleFunc("/export", h.HandleExport)
	mux.HandleFunc("/export/status", h.HandleExportStatus)
	return mux
}

// --- Browser Handler ---

// HandleBrowser upgrades to a websocket and serves one browser window.
func (h *Handler) HandleBrowser(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Browser upgrade failed", "error", err)
		return
	}

	client := hub.NewClient(conn)
	h.Hub.Register(client)
	defer h.Hub.Unregister(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := newShell(h, client)
	// The session must be released before the client's loop stops.
	defer sh.closeDatabase()

	if h.Settings.DefaultPath != "" {
		sh.handle(ctx, Command{Type: "open", Path: h.Settings.DefaultPath})
	}

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				sh.fail(errors.New("malformed command"))
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("Browser read ended", "client_id", client.ID, "error", err)
			}
			return
		}
		sh.handle(ctx, cmd)
	}
}

// --- Export Handlers ---

type ExportRequest struct {
	Path   string `json:"path"`
	Driver string `json:"driver"`
	Query  string `json:"query"`
	Format string `json:"format"`
	// Email optionally receives a notice when the job finishes.
	Email string `json:"email,omitempty"`
}

// HandleExport queues an export job and answers with its id.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "Missing query", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		req.Path = h.Settings.DefaultPath
	}
	if req.Path == "" {
		http.Error(w, "Missing path", http.StatusBadRequest)
		return
	}
	if req.Driver == "" {
		req.Driver = h.Settings.Driver
	}
	if !exporter.ValidFormat(req.Format) {
		http.Error(w, "Unknown format", http.StatusBadRequest)
		return
	}

	job := worker.NewExportJob(req.Driver, req.Path, req.Query, req.Format, h.Settings.ExportTimeout)
	job.Email = req.Email
	if !h.Pool.Submit(job) {
		job.Cancel()
		http.Error(w, "Export queue is full", http.StatusServiceUnavailable)
		return
	}
	slog.Info("Export queued", "job_id", job.ID, "format", job.Format)

	// Announce the outcome once the job is done.
	go func() {
		<-job.Ctx.Done()
		h.Hub.Broadcast(hub.Message{Type: hub.TypeExport, Job: job.Info()})
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID})
}

// HandleExportStatus reports the progress of a job.
func (h *Handler) HandleExportStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Missing id", http.StatusBadRequest)
		return
	}
	job, ok := h.Pool.Job(id)
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(job.Info())
}
