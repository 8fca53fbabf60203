package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	mail "github.com/go-mail/mail/v2"

	"github.com/profepulse/profepulse-api/pkg/config"
)

// ErrNotConfigured is returned when SMTP_HOST or SMTP_FROM are missing.
var ErrNotConfigured = errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")

// Message is an outgoing HTML e-mail.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers a built message. *mail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*mail.Message) error
}

// Mailer sends mail over SMTP with mandatory STARTTLS.
type Mailer struct {
	from   string
	sender Sender
}

// New builds a Mailer from cfg.
func New(cfg config.MailConfig) (*Mailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, ErrNotConfigured
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify, //nolint:gosec // development servers only
	}
	return &Mailer{from: cfg.From, sender: d}, nil
}

// NewWithSender builds a Mailer over a custom transport.
func NewWithSender(from string, sender Sender) *Mailer {
	return &Mailer{from: from, sender: sender}
}

// Send delivers msg. Messages without recipients are ignored.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mm := mail.NewMessage()
	mm.SetHeader("From", m.from)
	mm.SetHeader("To", msg.To...)
	mm.SetHeader("Subject", msg.Subject)
	mm.SetBody("text/html", msg.HTML)

	if err := m.sender.DialAndSend(mm); err != nil {
		return fmt.Errorf("send mail %q: %w", msg.Subject, err)
	}
	return nil
}
