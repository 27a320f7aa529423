package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RETRY_WAIT", "not-a-duration")
	t.Setenv("READ_ONLY", "maybe")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := Load()
	assert.Equal(t, time.Second, cfg.RetryWait)
	assert.False(t, cfg.ReadOnly)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/data/app.db")
	t.Setenv("READ_ONLY", "true")
	t.Setenv("RETRY_WAIT", "250ms")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example,")
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("MAX_DB_CONCURRENCY", "3")
	t.Setenv("S3_PATH_STYLE", "1")
	t.Setenv("SMTP_HOST", "mail.local")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("EXPORT_RETENTION", "10m")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/data/app.db", cfg.DBPath)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryWait)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 7, cfg.WorkerCount)
	assert.Equal(t, int64(3), cfg.MaxDBConcurrency)
	assert.True(t, cfg.S3PathStyle)
	assert.Equal(t, "mail.local", cfg.SMTPHost)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.Equal(t, 10*time.Minute, cfg.ExportRetention)
}
