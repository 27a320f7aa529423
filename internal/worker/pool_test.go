package worker

import (
	"compress/gzip"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlite-browser/internal/email"
	"sqlite-browser/internal/storage"
	"sqlite-browser/internal/testutil"
)

func startPool(t *testing.T, useGzip bool) (*Pool, *storage.LocalProvider) {
	t.Helper()
	store := storage.NewLocalProvider(t.TempDir())
	p := NewPool(2, 1, ReadOnlyOpener, store, useGzip)
	p.Start()
	t.Cleanup(p.Stop)
	return p, store
}

func waitFinished(t *testing.T, job *ExportJob) JobInfo {
	t.Helper()
	require.Eventually(t, func() bool {
		s := job.Info().Status
		return s == StatusCompleted || s == StatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return job.Info()
}

func readStored(t *testing.T, store storage.Provider, key string) []byte {
	t.Helper()
	r, err := store.OpenFile(context.Background(), key)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestPool_ExportCSV(t *testing.T) {
	p, store := startPool(t, false)
	db := testutil.TwoTables(t)

	job := NewExportJob("sqlite3", db, "SELECT id, name FROM a ORDER BY id", "", time.Minute)
	require.True(t, p.Submit(job))

	info := waitFinished(t, job)
	require.Equal(t, StatusCompleted, info.Status, info.Error)
	assert.Equal(t, int64(2), info.Rows)
	assert.Equal(t, "exports/"+job.ID+".csv", info.Key)
	assert.Contains(t, info.DownloadURL, "file://")

	assert.Equal(t, "id,name\n1,ada\n2,bob\n", string(readStored(t, store, info.Key)))

	found, ok := p.Job(job.ID)
	require.True(t, ok)
	assert.Same(t, job, found)
}

func TestPool_ExportGzipJSON(t *testing.T) {
	p, store := startPool(t, true)
	db := testutil.TwoTables(t)

	job := NewExportJob("sqlite3", db, "SELECT name FROM a WHERE id = 2", "json", time.Minute)
	require.True(t, p.Submit(job))

	info := waitFinished(t, job)
	require.Equal(t, StatusCompleted, info.Status, info.Error)
	assert.Equal(t, "exports/"+job.ID+".jsonl.gz", info.Key)

	r, err := store.OpenFile(context.Background(), info.Key)
	require.NoError(t, err)
	defer r.Close()
	zr, err := gzip.NewReader(r)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"bob\"}\n", string(data))
}

func TestPool_FailedJobs(t *testing.T) {
	p, _ := startPool(t, false)
	db := testutil.TwoTables(t)

	bad := NewExportJob("sqlite3", db, "SELECT * FROM nope", "csv", time.Minute)
	writes := NewExportJob("sqlite3", db, "DELETE FROM a", "csv", time.Minute)
	format := NewExportJob("sqlite3", db, "SELECT 1", "yaml", time.Minute)
	missing := NewExportJob("sqlite3", db+".missing", "SELECT 1", "csv", time.Minute)

	for _, job := range []*ExportJob{bad, writes, format, missing} {
		require.True(t, p.Submit(job))
	}
	for _, job := range []*ExportJob{bad, writes, format, missing} {
		info := waitFinished(t, job)
		assert.Equal(t, StatusFailed, info.Status, job.Query)
		assert.NotEmpty(t, info.Error)
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1, ReadOnlyOpener, storage.NewLocalProvider(t.TempDir()), false)
	p.Start()
	p.Stop()

	assert.False(t, p.Submit(NewExportJob("sqlite3", "x.db", "SELECT 1", "csv", time.Minute)))
	_, ok := p.Job("unknown")
	assert.False(t, ok)
}

type recordingSender struct {
	mu      sync.Mutex
	to      []string
	notices []email.Notice
}

func (r *recordingSender) ExportReady(to string, n email.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.to = append(r.to, to)
	r.notices = append(r.notices, n)
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

func TestPool_NotifiesJobEmail(t *testing.T) {
	rec := &recordingSender{}
	p := NewPool(1, 1, ReadOnlyOpener, storage.NewLocalProvider(t.TempDir()), false).WithNotifier(rec)
	p.Start()
	t.Cleanup(p.Stop)
	db := testutil.TwoTables(t)

	ok := NewExportJob("sqlite3", db, "SELECT * FROM a", "csv", time.Minute)
	ok.Email = "ada@example.com"
	bad := NewExportJob("sqlite3", db, "SELECT * FROM nope", "csv", time.Minute)
	bad.Email = "bob@example.com"
	silent := NewExportJob("sqlite3", db, "SELECT * FROM b", "csv", time.Minute)

	for _, job := range []*ExportJob{ok, bad, silent} {
		require.True(t, p.Submit(job))
	}
	for _, job := range []*ExportJob{ok, bad, silent} {
		waitFinished(t, job)
	}
	require.Eventually(t, func() bool { return rec.count() == 2 }, 5*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"ada@example.com", "bob@example.com"}, rec.to)
	assert.Equal(t, int64(2), rec.notices[0].Rows)
	assert.False(t, rec.notices[0].Failed())
	assert.True(t, rec.notices[1].Failed())
}

func TestPool_FinishedJobsExpire(t *testing.T) {
	p := NewPool(1, 1, ReadOnlyOpener, storage.NewLocalProvider(t.TempDir()), false).
		WithRetention(20 * time.Millisecond)
	p.Start()
	t.Cleanup(p.Stop)
	db := testutil.TwoTables(t)

	old := NewExportJob("sqlite3", db, "SELECT * FROM a", "csv", time.Minute)
	require.True(t, p.Submit(old))
	waitFinished(t, old)

	_, ok := p.Job(old.ID)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok := p.Job(old.ID)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)

	next := NewExportJob("sqlite3", db, "SELECT * FROM b", "csv", time.Minute)
	require.True(t, p.Submit(next))

	p.mu.RLock()
	_, stored := p.jobs[old.ID]
	p.mu.RUnlock()
	assert.False(t, stored, "expired job should be swept on submit")
}

func TestPool_SubmitRegistersBeforeQueueing(t *testing.T) {
	// not started: jobs stay queued
	p := NewPool(1, 1, ReadOnlyOpener, storage.NewLocalProvider(t.TempDir()), false)
	t.Cleanup(p.Stop)

	var accepted []*ExportJob
	for i := 0; i < cap(p.jobQueue); i++ {
		job := NewExportJob("sqlite3", "x.db", "SELECT 1", "csv", time.Minute)
		require.True(t, p.Submit(job))
		accepted = append(accepted, job)
	}
	for _, job := range accepted {
		found, ok := p.Job(job.ID)
		require.True(t, ok)
		assert.Equal(t, StatusPending, found.Info().Status)
	}

	rejected := NewExportJob("sqlite3", "x.db", "SELECT 1", "csv", time.Minute)
	assert.False(t, p.Submit(rejected))
	_, ok := p.Job(rejected.ID)
	assert.False(t, ok)
}
