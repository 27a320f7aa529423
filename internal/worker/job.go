package worker

import (
	"context"
	"sync"
	"time"

	"sqlite-browser/internal/exporter"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// ExportJob represents a single export of a query result to storage.
type ExportJob struct {
	// ID is the unique UUID v4 for the job.
	ID string
	// Driver and Path name the database the job opens for itself.
	Driver string
	Path   string
	// Query is the statement whose result is exported.
	Query string
	// Format is the requested output format (csv, json, excel, pdf).
	Format string
	// Email, when set, receives a notice once the job finishes.
	Email string

	// Context manages the lifecycle/cancellation of the job.
	Ctx    context.Context
	Cancel context.CancelFunc

	mu        sync.Mutex
	submitted time.Time
	started   time.Time
	finished  time.Time
	status    JobStatus
	err       error
	stats     *exporter.ExportResult
	key       string
	url       string
}

// JobInfo is a point-in-time copy of a job's progress.
type JobInfo struct {
	ID          string        `json:"id"`
	Status      JobStatus     `json:"status"`
	Format      string        `json:"format"`
	Error       string        `json:"error,omitempty"`
	Rows        int64         `json:"rows"`
	Duration    time.Duration `json:"duration_ns"`
	Key         string        `json:"key,omitempty"`
	DownloadURL string        `json:"download_url,omitempty"`
	Submitted   time.Time     `json:"submitted"`
	Started     time.Time     `json:"started,omitempty"`
	Finished    time.Time     `json:"finished,omitempty"`
}

func NewExportJob(driverName, path, query, format string, timeout time.Duration) *ExportJob {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if format == "" {
		format = exporter.FormatCSV
	}
	return &ExportJob{
		ID:        uuid.New().String(),
		Driver:    driverName,
		Path:      path,
		Query:     query,
		Format:    format,
		submitted: time.Now(),
		status:    StatusPending,
		Ctx:       ctx,
		Cancel:    cancel,
	}
}

// Info returns a copy of the job's progress.
func (j *ExportJob) Info() JobInfo {
	j.mu.Lock()
	defer j.mu.Unlock()

	info := JobInfo{
		ID:          j.ID,
		Status:      j.status,
		Format:      j.Format,
		Key:         j.key,
		DownloadURL: j.url,
		Submitted:   j.submitted,
		Started:     j.started,
		Finished:    j.finished,
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	if j.stats != nil {
		info.Rows = j.stats.RowsProcessed
		info.Duration = j.stats.Duration
	}
	return info
}

func (j *ExportJob) start() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = time.Now()
	j.status = StatusProcessing
	return j.started.Sub(j.submitted)
}

func (j *ExportJob) complete(key, url string, stats *exporter.ExportResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusCompleted
	j.key = key
	j.url = url
	j.stats = stats
	j.finished = time.Now()
}

func (j *ExportJob) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusFailed
	j.err = err
	j.finished = time.Now()
}

// expired reports whether the job finished more than retention before now.
func (j *ExportJob) expired(now time.Time, retention time.Duration) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return !j.finished.IsZero() && now.Sub(j.finished) > retention
}
