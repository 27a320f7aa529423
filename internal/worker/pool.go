package worker

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"sqlite-browser/internal/email"
	"sqlite-browser/internal/exporter"
	"sqlite-browser/internal/session"
	"sqlite-browser/internal/storage"

	"golang.org/x/sync/semaphore"
)

// Opener opens the database an export job reads from.
type Opener func(ctx context.Context, driverName, path string) (*session.Session, error)

// Pool runs export jobs on a fixed number of workers. A separate semaphore
// limits how many of them read from a database at once.
type Pool struct {
	// jobQueue allows for buffering incoming requests before workers pick them up.
	jobQueue chan *ExportJob
	workers  int
	// dbSem restricts the number of concurrent exports reading a database.
	dbSem *semaphore.Weighted
	wg    sync.WaitGroup
	quit  chan struct{}
	once  sync.Once

	open    Opener
	storage storage.Provider
	useGzip bool
	notify  email.Sender

	mu        sync.RWMutex
	jobs      map[string]*ExportJob
	retention time.Duration
}

// DefaultRetention is how long a finished job stays visible to Job.
const DefaultRetention = time.Hour

// NewPool initializes a worker pool with the specified configuration.
// It does not start the workers; call Start() to begin processing.
func NewPool(workers int, maxDBConcurrency int64, open Opener, store storage.Provider, useGzip bool) *Pool {
	if workers < 1 {
		workers = 1
	}
	if maxDBConcurrency < 1 {
		maxDBConcurrency = 1
	}
	return &Pool{
		jobQueue: make(chan *ExportJob, 100), // Bounded buffer to prevent infinite memory growth
		workers:  workers,
		dbSem:    semaphore.NewWeighted(maxDBConcurrency),
		quit:     make(chan struct{}),
		open:     open,
		storage:  store,
		useGzip:  useGzip,
		jobs:     make(map[string]*ExportJob),

		retention: DefaultRetention,
	}
}

// WithRetention sets how long finished jobs can be looked up.
func (p *Pool) WithRetention(d time.Duration) *Pool {
	p.retention = d
	return p
}

// WithNotifier makes the pool notify a job's Email when it finishes.
func (p *Pool) WithNotifier(s email.Sender) *Pool {
	p.notify = s
	return p
}

// ReadOnlyOpener opens every job's database read-only.
func ReadOnlyOpener(ctx context.Context, driverName, path string) (*session.Session, error) {
	return session.Open(ctx, session.Options{Driver: driverName, Path: path, ReadOnly: true})
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	slog.Info("Worker pool started", "workers", p.workers)
}

// Submit queues job. It reports false when the queue is full or the pool
// is stopping.
func (p *Pool) Submit(job *ExportJob) bool {
	select {
	case <-p.quit:
		return false
	default:
	}

	// Registered first so a status poll never misses an accepted job.
	p.mu.Lock()
	p.sweep(time.Now())
	p.jobs[job.ID] = job
	p.mu.Unlock()

	select {
	case p.jobQueue <- job:
		return true
	default:
		// Queue full
		p.mu.Lock()
		delete(p.jobs, job.ID)
		p.mu.Unlock()
		return false
	}
}

// Job looks up a submitted job. Jobs finished longer than the retention
// period ago are gone.
func (p *Pool) Job(id string) (*ExportJob, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	job, ok := p.jobs[id]
	if ok && job.expired(time.Now(), p.retention) {
		return nil, false
	}
	return job, ok
}

// sweep drops expired jobs. p.mu must be held.
func (p *Pool) sweep(now time.Time) {
	for id, job := range p.jobs {
		if job.expired(now, p.retention) {
			delete(p.jobs, id)
		}
	}
}

// Stop initiates graceful shutdown. Jobs still queued are failed.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()

	for {
		select {
		case job := <-p.jobQueue:
			job.fail(fmt.Errorf("worker pool stopped"))
			job.Cancel()
		default:
			slog.Info("Worker pool stopped")
			return
		}
	}
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	slog.Debug("Worker started", "worker_id", id)

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.processJob(id, job)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) processJob(workerID int, job *ExportJob) {
	defer job.Cancel()
	slog.Info("Processing job", "worker_id", workerID, "job_id", job.ID)

	waitTime := job.start()

	// 1. Acquire DB Semaphore
	if err := p.dbSem.Acquire(job.Ctx, 1); err != nil {
		p.failJob(job, fmt.Errorf("failed to acquire db slot: %w", err))
		return
	}

	key, stats, err := p.executeExport(job)
	p.dbSem.Release(1)

	if err != nil {
		p.failJob(job, err)
		return
	}

	job.complete(key, p.storage.GetDownloadURL(key), stats)
	slog.Info("Job completed",
		"job_id", job.ID,
		"rows", stats.RowsProcessed,
		"wait", waitTime,
		"query_duration", stats.Duration,
		"key", key,
	)
	p.notifyJob(job)
}

func (p *Pool) notifyJob(job *ExportJob) {
	if p.notify == nil || job.Email == "" {
		return
	}
	info := job.Info()
	p.notify.ExportReady(job.Email, email.Notice{
		JobID:       info.ID,
		Format:      info.Format,
		Rows:        info.Rows,
		Duration:    info.Duration,
		DownloadURL: info.DownloadURL,
		Err:         info.Error,
	})
}

func (p *Pool) executeExport(job *ExportJob) (string, *exporter.ExportResult, error) {
	sess, err := p.open(job.Ctx, job.Driver, job.Path)
	if err != nil {
		return "", nil, err
	}
	defer sess.Close()

	key := fmt.Sprintf("exports/%s.%s", job.ID, exporter.Extension(job.Format))
	if p.useGzip {
		key += ".gz"
	}

	// Start Storage Upload in background (it reads from pipe)
	storageWriter, errChan := p.storage.StreamToFile(job.Ctx, key)
	if storageWriter == nil {
		return "", nil, <-errChan
	}

	// Prepare Output Writer (maybe wrapped in Gzip)
	var finalWriter io.Writer = storageWriter
	var gz *gzip.Writer
	if p.useGzip {
		gz = gzip.NewWriter(storageWriter)
		finalWriter = gz
	}

	encoder, err := exporter.NewEncoder(job.Format, finalWriter)
	if err != nil {
		_ = storageWriter.Close()
		<-errChan
		return "", nil, err
	}

	// Run Export (DB -> Encoder -> [Gzip?] -> Pipe -> Storage)
	stats, exportErr := sess.Export(job.Ctx, job.Query, encoder)

	// Close Encoder (document formats are written out here)
	encoderCloseErr := encoder.Close()

	// If Gzip, close it first to flush footer
	var outputCloseErr error
	if gz != nil {
		outputCloseErr = gz.Close()
	}

	// Then close the underlying storage writer (the pipe)
	storageCloseErr := storageWriter.Close()

	// Wait for upload result
	uploadErr := <-errChan

	if exportErr != nil {
		return "", nil, fmt.Errorf("export failed: %w", exportErr)
	}
	if encoderCloseErr != nil {
		return "", nil, fmt.Errorf("encoder close failed: %w", encoderCloseErr)
	}
	if outputCloseErr != nil {
		return "", nil, fmt.Errorf("gzip close failed: %w", outputCloseErr)
	}
	if storageCloseErr != nil {
		return "", nil, fmt.Errorf("storage close failed: %w", storageCloseErr)
	}
	if uploadErr != nil {
		return "", nil, fmt.Errorf("upload failed: %w", uploadErr)
	}
	return key, stats, nil
}

func (p *Pool) failJob(job *ExportJob, err error) {
	job.fail(err)
	slog.Error("Job failed", "job_id", job.ID, "error", err)
	p.notifyJob(job)
}
