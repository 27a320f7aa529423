package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const downloadURLExpiry = 24 * time.Hour

// S3Provider uploads exports to a bucket with the multipart upload manager.
type S3Provider struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewS3Provider(client *s3.Client, bucket string) *S3Provider {
	return &S3Provider{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

// StreamToFile uploads everything written to the returned pipe. The upload
// result arrives on the channel after the writer is closed.
func (p *S3Provider) StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error) {
	reader, writer := io.Pipe()
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)

		uploader := manager.NewUploader(p.client, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024 // 10MB chunks
			u.Concurrency = 5
		})

		slog.Info("Starting S3 upload", "key", key)
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
			Body:   reader,
		})

		// Unblocks the writer if the upload gave up early.
		_ = reader.CloseWithError(err)

		if err != nil {
			slog.Error("S3 Upload failed", "error", err)
			errChan <- fmt.Errorf("s3 upload failed: %w", err)
		} else {
			slog.Info("S3 Upload finished successfully", "key", key)
			errChan <- nil
		}
	}()

	return writer, errChan
}

func (p *S3Provider) OpenFile(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// GetDownloadURL returns a presigned GET URL, or the s3:// URI when signing
// fails.
func (p *S3Provider) GetDownloadURL(key string) string {
	req, err := p.presign.PresignGetObject(context.Background(),
		&s3.GetObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(downloadURLExpiry),
	)
	if err != nil {
		slog.Warn("Presigning download URL failed", "key", key, "error", err)
		return fmt.Sprintf("s3://%s/%s", p.bucket, key)
	}
	return req.URL
}
