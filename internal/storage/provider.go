package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrInvalidKey = errors.New("storage key escapes the storage root")

// Provider defines the interface for storing exported data.
type Provider interface {
	// StreamToFile returns a WriteCloser. Data written to it is streamed to the storage destination.
	// The key is the relative path/filename for the object.
	// The returned channel receives a single error (or nil) when the storage operation completes.
	StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error)

	// OpenFile opens the stored file for reading.
	OpenFile(ctx context.Context, key string) (io.ReadCloser, error)

	// GetDownloadURL returns a viewable/downloadable URL for the stored item.
	GetDownloadURL(key string) string
}

// Options selects and configures a Provider.
type Options struct {
	Type      string // "local" or "s3"
	LocalPath string

	Region    string
	Bucket    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
}

// New builds the provider named by opts.Type.
func New(opts Options) (Provider, error) {
	switch opts.Type {
	case "local", "":
		return NewLocalProvider(opts.LocalPath), nil
	case "s3":
		if opts.Bucket == "" {
			return nil, errors.New("s3 storage requires a bucket")
		}
		s3Opts := s3.Options{
			Region:       opts.Region,
			UsePathStyle: opts.PathStyle,
		}
		if opts.AccessKey != "" {
			s3Opts.Credentials = credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
		}
		if opts.Endpoint != "" {
			s3Opts.BaseEndpoint = aws.String(opts.Endpoint)
		}
		slog.Info("Using S3 storage", "bucket", opts.Bucket, "endpoint", opts.Endpoint)
		return NewS3Provider(s3.New(s3Opts), opts.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", opts.Type)
	}
}
