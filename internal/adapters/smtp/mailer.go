// Package smtp implements the Notifier port over plain SMTP.
package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/librarium/discovery-auth/config"
	"github.com/librarium/discovery-auth/internal/ports"
)

// Mailer delivers mail through a single configured SMTP relay.
type Mailer struct {
	cfg  config.MailConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ ports.Notifier = (*Mailer)(nil)

// MailerOptions configures a Mailer.
type MailerOptions struct {
	// Send overrides the SMTP transport, for tests.
	Send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a Mailer for the configured relay.
func NewMailer(cfg config.MailConfig, opts MailerOptions) *Mailer {
	send := opts.Send
	if send == nil {
		send = smtp.SendMail
	}
	return &Mailer{cfg: cfg, send: send}
}

// Send delivers one plain-text message.
func (m *Mailer) Send(_ context.Context, to, from, subject, body string) error {
	if from == "" {
		from = m.cfg.DefaultFrom
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, from, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
