package email

import (
	"context"
	"errors"
	"strings"
)

// ErrTransport wraps every failure to hand a message to the mail transport.
var ErrTransport = errors.New("email transport failed")

// Sender is the interface that all email providers must implement.
type Sender interface {
	// Send delivers msg to every address in msg.To in a single email.
	Send(ctx context.Context, msg Message) error
}

// Message represents an email message to be sent.
type Message struct {
	To       []string // all recipients share one To header
	Subject  string
	HTMLBody string
	TextBody string // plain-text fallback body
}

// prefixedSender adds a fixed tag in front of every subject
type prefixedSender struct {
	next   Sender
	prefix string
}

// WithSubjectPrefix returns a Sender that prepends prefix to each subject
// before delegating to next.
func WithSubjectPrefix(next Sender, prefix string) Sender {
	if prefix == "" {
		return next
	}
	return &prefixedSender{next: next, prefix: prefix}
}

func (s *prefixedSender) Send(ctx context.Context, msg Message) error {
	if !strings.HasPrefix(msg.Subject, s.prefix) {
		msg.Subject = s.prefix + msg.Subject
	}
	return s.next.Send(ctx, msg)
}
