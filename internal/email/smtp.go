package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"gopkg.in/mail.v2"
)

// SMTPConfig holds the configuration for the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	// ImplicitTLS dials straight into TLS (port 465) instead of upgrading
	// with STARTTLS.
	ImplicitTLS bool
	Timeout     time.Duration
	From        string
	FromName    string
}

// SMTPSender implements Sender over an authenticated, TLS-protected SMTP session.
// Every Send dials a fresh connection and closes it before returning.
type SMTPSender struct {
	cfg  SMTPConfig
	send func(d *mail.Dialer, m *mail.Message) error
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp: host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp: sender address is required")
	}
	return &SMTPSender{
		cfg: cfg,
		send: func(d *mail.Dialer, m *mail.Message) error {
			return d.DialAndSend(m)
		},
	}, nil
}

func (s *SMTPSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.User, s.cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	if s.cfg.ImplicitTLS {
		d.SSL = true
	} else {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	if s.cfg.Timeout > 0 {
		d.Timeout = s.cfg.Timeout
	}
	return d
}

// compose builds the MIME message: plain text with an HTML alternative.
func (s *SMTPSender) compose(msg Message) *mail.Message {
	m := mail.NewMessage()
	if s.cfg.FromName != "" {
		m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	} else {
		m.SetHeader("From", s.cfg.From)
	}
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetDateHeader("Date", time.Now())

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBody("text/html", msg.HTMLBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}
	return m
}

// Send sends an email via SMTP.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: smtp: no recipients", ErrTransport)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: smtp: %w", ErrTransport, err)
	}

	if err := s.send(s.dialer(), s.compose(msg)); err != nil {
		return fmt.Errorf("%w: smtp: failed to send email: %w", ErrTransport, err)
	}
	return nil
}
