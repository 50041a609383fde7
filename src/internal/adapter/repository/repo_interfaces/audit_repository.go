package repo_interfaces

import (
	"context"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

type AuditRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) error
	ListByCorrelation(ctx context.Context, correlationID string) ([]domain.AuditEvent, error)
}
