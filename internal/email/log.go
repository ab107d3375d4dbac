package email

import (
	"context"
	"strings"

	"github.com/notiz/notiz/internal/logger"
)

// LogSender logs emails instead of sending them. Used for dry runs.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a new log-based email sender.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log.WithComponent("email")}
}

// Send logs the email details.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info().
		Str("to", strings.Join(msg.To, ", ")).
		Str("subject", msg.Subject).
		Str("body", msg.TextBody).
		Msg("email not sent (dry run)")
	return nil
}
