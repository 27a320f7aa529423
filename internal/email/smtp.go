package email

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
)

// SMTPSender mails notices through an SMTP relay in the background.
type SMTPSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	// send is smtp.SendMail outside tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	wg   sync.WaitGroup
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		send:     smtp.SendMail,
	}
}

// ExportReady sends the notice without blocking the worker.
func (s *SMTPSender) ExportReady(to string, n Notice) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

		// Local relays such as MailHog take no auth.
		var auth smtp.Auth
		if s.User != "" && s.Password != "" {
			auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
		}

		slog.Info("Sending email via SMTP", "to", to, "host", s.Host, "job_id", n.JobID)
		if err := s.send(addr, auth, s.From, []string{to}, buildMessage(s.From, to, n)); err != nil {
			slog.Error("Failed to send email", "error", err, "to", to)
			return
		}
		slog.Info("Email sent successfully", "to", to)
	}()
}

// Wait blocks until every pending mail has been handed to the relay.
func (s *SMTPSender) Wait() {
	s.wg.Wait()
}

func buildMessage(from, to string, n Notice) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", n.Subject())
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(n.Body(), "\n", "\r\n"))
	return []byte(b.String())
}
