package email

import (
	"context"
	"fmt"

	"github.com/notiz/notiz/internal/config"
	"github.com/notiz/notiz/internal/logger"
)

// NewSender builds the Sender selected by cfg.Provider, wrapped so every
// subject carries cfg.SubjectPrefix.
func NewSender(ctx context.Context, cfg config.EmailConfig, log *logger.Logger) (Sender, error) {
	var (
		sender Sender
		err    error
	)

	switch cfg.Provider {
	case config.ProviderSMTP:
		sender, err = NewSMTPSender(SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			User:        cfg.SMTP.User,
			Password:    cfg.SMTP.Password,
			ImplicitTLS: cfg.SMTP.TLS == "ssl",
			Timeout:     cfg.SMTP.Timeout,
			From:        cfg.Sender,
			FromName:    cfg.SenderName,
		})
	case config.ProviderGmail:
		sender, err = NewGmailSender(ctx, GmailConfig{
			CredentialsJSON: cfg.Gmail.CredentialsJSON,
			ClientID:        cfg.Gmail.ClientID,
			ClientSecret:    cfg.Gmail.ClientSecret,
			RefreshToken:    cfg.Gmail.RefreshToken,
			SenderAddress:   cfg.Sender,
			SenderName:      cfg.SenderName,
		})
	case config.ProviderLog:
		sender = NewLogSender(log)
	default:
		return nil, fmt.Errorf("%w: unknown email provider %q", config.ErrInvalid, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return WithSubjectPrefix(sender, cfg.SubjectPrefix), nil
}
