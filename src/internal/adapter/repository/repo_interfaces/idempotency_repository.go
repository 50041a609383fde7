package repo_interfaces

import (
	"context"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

type IdempotencyRepository interface {
	Get(ctx context.Context, intentID string) (domain.IdempotencyRecord, error)
	// Save inserts the record; the intent id is unique and an insert for a
	// seen intent fails.
	Save(ctx context.Context, record domain.IdempotencyRecord) error
	// UpdateResult replaces the stored result for an intent that reached a
	// terminal outcome after being recorded as pending.
	UpdateResult(ctx context.Context, intentID string, result domain.ClearingResult) error
}
