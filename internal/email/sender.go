// Package email notifies users when an export job finishes.
package email

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Notice describes a finished export job.
type Notice struct {
	JobID       string
	Format      string
	Rows        int64
	Duration    time.Duration
	DownloadURL string
	// Err is set when the job failed.
	Err string
}

// Failed reports whether the job ended in error.
func (n Notice) Failed() bool { return n.Err != "" }

func (n Notice) Stats() string {
	return fmt.Sprintf("%d rows, %s, %d ms", n.Rows, n.Format, n.Duration.Milliseconds())
}

func (n Notice) Subject() string {
	if n.Failed() {
		return "Your Database Export Failed"
	}
	return "Your Database Export is Ready"
}

func (n Notice) Body() string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	if n.Failed() {
		fmt.Fprintf(&b, "Your export job %s failed.\n\nError: %s\n", n.JobID, n.Err)
		return b.String()
	}
	fmt.Fprintf(&b, "Your export job %s has completed successfully.\n\nStats: %s\n\n", n.JobID, n.Stats())
	fmt.Fprintf(&b, "Download Link:\n%s\n\nThis link will expire depending on your storage policy.\n", n.DownloadURL)
	return b.String()
}

// Sender delivers export notices. Implementations must not block the caller
// for the duration of delivery.
type Sender interface {
	ExportReady(to string, n Notice)
}

// LogSender writes notices to the log instead of mailing them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) ExportReady(to string, n Notice) {
	s.logger.Info("EMAIL SENT",
		"to", to,
		"job_id", n.JobID,
		"url", n.DownloadURL,
		"stats", n.Stats(),
		"error", n.Err,
	)
}
