package model

import "time"

// AuditLog records one notification attempt
type AuditLog struct {
	ID         string                 `json:"id"`
	RunID      string                 `json:"runId"`
	Kind       NotificationKind       `json:"kind"`
	EventLabel string                 `json:"eventLabel"`
	DueDate    *time.Time             `json:"dueDate,omitempty"`
	SheetRow   int                    `json:"sheetRow"`
	Outcome    string                 `json:"outcome"`
	Error      *string                `json:"error,omitempty"`
	Recipients []string               `json:"recipients"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// Audit outcome constants
const (
	AuditOutcomeSent      = "sent"
	AuditOutcomeFailed    = "failed"
	AuditOutcomeDuplicate = "duplicate"
	AuditOutcomeDryRun    = "dry_run"
)
