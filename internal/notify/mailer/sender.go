// Package mailer sends notification mail over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// ErrSend marks a failed delivery. The dispatcher leaves the notification
// flag false so the send is retried on the next scan.
var ErrSend = errors.New("mail send failed")

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// Timeout bounds the whole SMTP conversation. Zero means 15s.
	Timeout time.Duration
}

// SMTPSender delivers mail through a single SMTP host.
type SMTPSender struct {
	config Config
	logger *slog.Logger
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg Config, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{config: cfg, logger: logger}
}

// Send delivers one message. The context deadline, capped by the
// configured timeout, bounds the connection so a stuck mail server cannot
// starve scheduled jobs.
func (s *SMTPSender) Send(ctx context.Context, subject, body, from string, to []string) error {
	if len(to) == 0 {
		return fmt.Errorf("%w: no recipients", ErrSend)
	}

	deadline := time.Now().Add(s.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	conn, err := net.DialTimeout("tcp", addr, time.Until(deadline))
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %v", ErrSend, addr, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", ErrSend, err)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(nil); err != nil {
			return fmt.Errorf("%w: starttls: %v", ErrSend, err)
		}
	}
	if s.config.Username != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("%w: auth: %v", ErrSend, err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("%w: rcpt %s: %v", ErrSend, rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	if _, err := w.Write(buildMessage(subject, body, from, to)); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSend, err)
	}

	if err := client.Quit(); err != nil {
		s.logger.Debug("smtp quit failed", "error", err)
	}
	return nil
}

func buildMessage(subject, body, from string, to []string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogSender logs messages instead of delivering them, for development
// without an SMTP host.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that only logs.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(_ context.Context, subject, _ string, from string, to []string) error {
	s.logger.Info("mail send skipped (log sender)",
		"subject", subject,
		"from", from,
		"to", strings.Join(to, ","),
	)
	return nil
}
