package mailer

import (
	"fmt"

	mail "github.com/go-mail/mail/v2"

	"github.com/noah-isme/confero-api/pkg/config"
)

// Message is an outbound email payload.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages to recipients.
type Mailer interface {
	Send(msg Message) error
}

// SMTPMailer delivers mail through an SMTP relay using go-mail.
type SMTPMailer struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTPMailer builds a mailer from SMTP configuration.
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}
	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	dialer.StartTLSPolicy = mail.MandatoryStartTLS
	if cfg.Timeout > 0 {
		dialer.Timeout = cfg.Timeout
	}
	return &SMTPMailer{dialer: dialer, from: cfg.From}, nil
}

// Discard drops every message. Used when SMTP is not configured so the
// rest of the service keeps working in development.
type Discard struct{}

// Send reports success without delivering anything.
func (Discard) Send(Message) error { return nil }

// Send dials the relay and delivers a single message.
func (m *SMTPMailer) Send(msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("recipient required")
	}
	message := mail.NewMessage()
	message.SetHeader("From", m.from)
	message.SetHeader("To", msg.To)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.Body)

	if err := m.dialer.DialAndSend(message); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}
