package exporter

import (
	"context"
	"fmt"
	"time"

	"sqlite-browser/internal/query"
)

// Streamer feeds query results into an encoder.
type Streamer struct {
	ch *query.Channel
}

// NewStreamer creates a streamer over a session's query channel.
func NewStreamer(ch *query.Channel) *Streamer {
	return &Streamer{ch: ch}
}

// ExportResult contains stats about the export
type ExportResult struct {
	RowsProcessed int64
	Duration      time.Duration
}

// StreamQuery executes the query and streams rows to the encoder one at a
// time, so memory stays flat for large tables. The caller closes encoder.
func (s *Streamer) StreamQuery(ctx context.Context, sql string, encoder RowEncoder) (*ExportResult, error) {
	start := time.Now()

	var rowCount int64
	var writeErr error

	err := s.ch.ExecuteStreaming(ctx, sql,
		func(columns []string) bool {
			if err := encoder.WriteHeader(columns); err != nil {
				writeErr = fmt.Errorf("failed to write header: %w", err)
				return false
			}
			return true
		},
		func(row query.Row) bool {
			if err := encoder.WriteRow(row.Values); err != nil {
				writeErr = fmt.Errorf("row write failed: %w", err)
				return false
			}
			rowCount++
			return true
		})
	if err != nil {
		return nil, err
	}
	if writeErr != nil {
		return nil, writeErr
	}

	if err := encoder.Flush(); err != nil {
		return nil, fmt.Errorf("flush error: %w", err)
	}
	if err := encoder.Error(); err != nil {
		return nil, fmt.Errorf("encoder error: %w", err)
	}

	return &ExportResult{
		RowsProcessed: rowCount,
		Duration:      time.Since(start),
	}, nil
}
