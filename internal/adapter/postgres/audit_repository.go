package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/YelzhanWeb/canteen/internal/domain"
	"github.com/YelzhanWeb/canteen/internal/interfaces"
)

type auditRepository struct {
	db DB
}

func NewAuditRepository(db DB) interfaces.AuditSink {
	return &auditRepository{db: db}
}

// Append writes outside any caller transaction so failed operations are still recorded.
func (r *auditRepository) Append(ctx context.Context, rec *domain.AuditRecord) error {
	payload, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("failed to encode audit context: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, level, action, actor_id, outcome, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Exec(ctx, query,
		rec.ID, rec.Level, rec.Action, rec.ActorID, rec.Outcome, string(payload), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", mapError(err))
	}
	return nil
}
