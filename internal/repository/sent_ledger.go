package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/notiz/notiz/internal/database"
	"github.com/notiz/notiz/internal/model"
)

// SentLedger remembers which notifications went out on a given day so that a
// second run on the same day does not send them again.
type SentLedger struct {
	rdb    *database.Redis
	prefix string
	ttl    time.Duration
}

// NewSentLedger creates a new SentLedger
func NewSentLedger(rdb *database.Redis, prefix string, ttl time.Duration) *SentLedger {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &SentLedger{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Key identifies a notification for an event on a calendar day
func (l *SentLedger) Key(kind model.NotificationKind, ev model.Event, today time.Time) string {
	due := "none"
	if ev.DueDate != nil {
		due = ev.DueDate.Format("2006-01-02")
	}
	sum := sha256.Sum256([]byte(ev.Label))
	return fmt.Sprintf("%s%s:%s:%s:%s", l.prefix, today.Format("2006-01-02"), kind, due, hex.EncodeToString(sum[:8]))
}

// WasSent reports whether the notification is already recorded
func (l *SentLedger) WasSent(ctx context.Context, kind model.NotificationKind, ev model.Event, today time.Time) (bool, error) {
	n, err := l.rdb.Exists(ctx, l.Key(kind, ev, today))
	if err != nil {
		return false, fmt.Errorf("failed to check sent ledger: %w", err)
	}
	return n > 0, nil
}

// Record marks the notification as sent
func (l *SentLedger) Record(ctx context.Context, kind model.NotificationKind, ev model.Event, today time.Time) error {
	if err := l.rdb.SetWithTTL(ctx, l.Key(kind, ev, today), time.Now().UTC().Format(time.RFC3339), l.ttl); err != nil {
		return fmt.Errorf("failed to record sent notification: %w", err)
	}
	return nil
}
