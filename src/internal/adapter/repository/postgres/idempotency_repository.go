package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, intentID string) (domain.IdempotencyRecord, error) {
	const query = `
SELECT intent_id, payload_hash, result, created_at, updated_at
FROM idempotency_keys
WHERE intent_id = $1`

	var (
		record domain.IdempotencyRecord
		result []byte
	)

	err := r.db.QueryRowContext(ctx, query, intentID).Scan(
		&record.IntentID,
		&record.PayloadHash,
		&result,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.IdempotencyRecord{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}

	if err := json.Unmarshal(result, &record.Result); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency result: %w", err)
	}

	return record, nil
}

func (r *IdempotencyRepository) Save(ctx context.Context, record domain.IdempotencyRecord) error {
	result, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("encode idempotency result: %w", err)
	}

	const query = `
INSERT INTO idempotency_keys (intent_id, payload_hash, result)
VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, record.IntentID, record.PayloadHash, result); err != nil {
		return translateError("save idempotency record", err)
	}
	return nil
}

func (r *IdempotencyRepository) UpdateResult(ctx context.Context, intentID string, result domain.ClearingResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode idempotency result: %w", err)
	}

	const query = `
UPDATE idempotency_keys
SET result = $2,
    updated_at = NOW()
WHERE intent_id = $1`

	res, err := r.db.ExecContext(ctx, query, intentID, encoded)
	if err != nil {
		return fmt.Errorf("update idempotency result: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update idempotency result: %w", err)
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}
