package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, event domain.AuditEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append audit begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := appendAuditTx(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit()
}

func appendAuditTx(ctx context.Context, tx *sql.Tx, event domain.AuditEvent) error {
	const query = `
INSERT INTO audit_events (id, correlation_id, actor, action, entity_type, entity_id, before_status, after_status, detail)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	if _, err := tx.ExecContext(
		ctx,
		query,
		event.ID,
		event.CorrelationID,
		event.Actor,
		event.Action,
		event.EntityType,
		event.EntityID,
		event.BeforeStatus,
		event.AfterStatus,
		event.Detail,
	); err != nil {
		return translateError("append audit event", err)
	}

	return nil
}

func (r *AuditRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]domain.AuditEvent, error) {
	const query = `
SELECT id, correlation_id, actor, action, entity_type, entity_id, before_status, after_status, detail, created_at
FROM audit_events
WHERE correlation_id = $1
ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		if err := rows.Scan(
			&event.ID,
			&event.CorrelationID,
			&event.Actor,
			&event.Action,
			&event.EntityType,
			&event.EntityID,
			&event.BeforeStatus,
			&event.AfterStatus,
			&event.Detail,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		out = append(out, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return out, nil
}
