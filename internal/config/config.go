package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// AppEnv is the running environment (development/production).
	AppEnv string
	// ServerPort is the HTTP port to listen on.
	ServerPort string
	// AllowedOrigins is a list of CORS allowed domains.
	AllowedOrigins []string

	// DBDriver selects the engine: sqlite3, sqlite, mysql, postgres or mongo.
	DBDriver string
	// DBPath is the database opened at start; a file path for SQLite, a DSN otherwise.
	DBPath string
	// ReadOnly opens databases without write access and rejects mutating statements.
	ReadOnly bool
	// RetryWait bounds how long a new query waits for the cancelled one.
	RetryWait time.Duration

	// StorageType determines where to save exports: "local" or "s3".
	StorageType string
	// LocalStoragePath is the directory for local exports.
	LocalStoragePath string
	// AWSRegion is the AWS region for S3 uploads.
	AWSRegion string
	// S3Bucket is the target S3 bucket name.
	S3Bucket string
	// S3Endpoint is an optional custom endpoint (for non-AWS S3 providers like MinIO).
	S3Endpoint string
	// S3PathStyle enables path-style addressing (required for some S3 providers).
	S3PathStyle bool
	// AWSAccessKeyID and AWSSecretAccessKey are static S3 credentials.
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// WorkerCount is the number of concurrent export jobs allowed.
	WorkerCount int
	// MaxDBConcurrency restricts the number of exports reading at once.
	MaxDBConcurrency int64
	// DefaultTimeout is the maximum duration for an export job.
	DefaultTimeout time.Duration
	// ExportRetention is how long finished export jobs stay queryable.
	ExportRetention time.Duration
	// Compression enables Gzip compression for exports.
	Compression bool

	// SMTPHost enables export notification mails; empty logs them instead.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

func Load() *Config {
	return &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:     getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
		DBDriver:           getEnv("DB_DRIVER", "sqlite3"),
		DBPath:             getEnv("DB_PATH", ""),
		ReadOnly:           getEnvBool("READ_ONLY", false),
		RetryWait:          getEnvDuration("RETRY_WAIT", time.Second),
		StorageType:        getEnv("STORAGE_TYPE", "local"),
		LocalStoragePath:   getEnv("LOCAL_STORAGE_PATH", "./exports"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3PathStyle:        getEnvBool("S3_PATH_STYLE", false),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		WorkerCount:        getEnvInt("WORKER_COUNT", 2),
		MaxDBConcurrency:   int64(getEnvInt("MAX_DB_CONCURRENCY", 2)),
		DefaultTimeout:     getEnvDuration("DEFAULT_TIMEOUT", 15*time.Minute),
		ExportRetention:    getEnvDuration("EXPORT_RETENTION", time.Hour),
		Compression:        getEnvBool("COMPRESSION", false),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:           getEnv("SMTP_FROM", "exports@localhost"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var result []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result = append(result, part)
			}
		}
		return result
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
