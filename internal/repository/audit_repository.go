package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/notiz/notiz/internal/database"
	"github.com/notiz/notiz/internal/model"
)

// AuditRepository handles notification audit persistence
type AuditRepository struct {
	db *database.Postgres
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *database.Postgres) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	if log == nil || log.ID == "" {
		return fmt.Errorf("failed to create audit log: %w", ErrInvalidInput)
	}

	metadataJSON, err := json.Marshal(log.Metadata)
	if err != nil || log.Metadata == nil {
		metadataJSON = []byte("{}")
	}

	query := `
		INSERT INTO notification_audit (id, run_id, kind, event_label, due_date,
		    sheet_row, outcome, error, recipients, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.RunID,
		string(log.Kind),
		log.EventLabel,
		log.DueDate,
		log.SheetRow,
		log.Outcome,
		log.Error,
		pq.Array(log.Recipients),
		metadataJSON,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}
