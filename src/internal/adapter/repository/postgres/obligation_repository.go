package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
)

type ObligationRepository struct {
	db *sql.DB
}

func NewObligationRepository(db *sql.DB) *ObligationRepository {
	return &ObligationRepository{db: db}
}

const authorizationColumns = `
id, event_id, user_address, anchor_type, units, amount, status, attestation,
proof_hash, fail_reason, authorized_at, expires_at, fulfilled_at, expired_at, failed_at`

func (r *ObligationRepository) Authorize(ctx context.Context, auth domain.AnchorAuthorization, entry domain.JournalEntry, lines []domain.JournalLine, audit domain.AuditEvent) (domain.AnchorAuthorization, domain.AnchorObligation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, fmt.Errorf("authorize begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const insertAuth = `
INSERT INTO anchor_authorizations (id, event_id, user_address, anchor_type, units, amount, status, attestation, authorized_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := tx.ExecContext(
		ctx,
		insertAuth,
		auth.ID,
		auth.EventID,
		auth.UserAddress,
		auth.AnchorType,
		auth.Units,
		auth.Amount,
		auth.Status,
		auth.Attestation,
		auth.AuthorizedAt,
		auth.ExpiresAt,
	); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, translateError("insert authorization", err)
	}

	const ensureObligation = `
INSERT INTO anchor_obligations (anchor_type)
VALUES ($1)
ON CONFLICT (anchor_type) DO NOTHING`

	if _, err := tx.ExecContext(ctx, ensureObligation, auth.AnchorType); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, translateError("ensure obligation row", err)
	}

	// The obligation row is the serialization point for this anchor type; the
	// counter update and the authorizing transfer commit together or not at all.
	const bumpAuthorized = `
UPDATE anchor_obligations
SET total_authorized = total_authorized + $2,
    updated_at = NOW()
WHERE anchor_type = $1
RETURNING anchor_type, total_authorized, total_fulfilled, total_expired, halted, halt_reason, updated_at`

	obligation, err := scanObligationRow(tx.QueryRowContext(ctx, bumpAuthorized, auth.AnchorType, auth.Amount))
	if err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, err
	}

	if _, err := postTransferTx(ctx, tx, entry, lines); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, err
	}

	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, fmt.Errorf("authorize commit: %w", err)
	}

	logger.Info("obligation repository authorization created", logger.Fields{
		"authorizationId": auth.ID,
		"eventId":         auth.EventID,
		"anchorType":      auth.AnchorType,
	})

	return auth, obligation, nil
}

func (r *ObligationRepository) Finalize(ctx context.Context, authorizationID string, next domain.AuthorizationStatus, update repo_interfaces.FinalizeUpdate, entry domain.JournalEntry, lines []domain.JournalLine, audit domain.AuditEvent) (domain.AnchorAuthorization, domain.AnchorObligation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, fmt.Errorf("finalize begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	auth, err := lockAuthorizationTx(ctx, tx, authorizationID)
	if err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, err
	}
	if auth.Status != domain.AuthorizationStatusAuthorized || !next.Terminal() {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, domain.ErrInvalidTransition
	}

	at := update.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var counterColumn string
	switch next {
	case domain.AuthorizationStatusFulfilled:
		counterColumn = "total_fulfilled"
		auth.FulfilledAt = &at
		auth.ProofHash = update.ProofHash
	case domain.AuthorizationStatusExpired:
		counterColumn = "total_expired"
		auth.ExpiredAt = &at
	case domain.AuthorizationStatusFailed:
		counterColumn = "total_expired"
		auth.FailedAt = &at
		auth.FailReason = update.FailReason
	}
	auth.Status = next

	const updateAuth = `
UPDATE anchor_authorizations
SET status = $2,
    proof_hash = $3,
    fail_reason = $4,
    fulfilled_at = $5,
    expired_at = $6,
    failed_at = $7
WHERE id = $1`

	if _, err := tx.ExecContext(
		ctx,
		updateAuth,
		auth.ID,
		auth.Status,
		auth.ProofHash,
		auth.FailReason,
		auth.FulfilledAt,
		auth.ExpiredAt,
		auth.FailedAt,
	); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, translateError("update authorization", err)
	}

	// The CHECK constraint on anchor_obligations turns a counter overshoot
	// into a whole-transaction failure surfaced as ErrInternalConsistency.
	bumpCounter := fmt.Sprintf(`
UPDATE anchor_obligations
SET %s = %s + $2,
    updated_at = NOW()
WHERE anchor_type = $1
RETURNING anchor_type, total_authorized, total_fulfilled, total_expired, halted, halt_reason, updated_at`, counterColumn, counterColumn)

	obligation, err := scanObligationRow(tx.QueryRowContext(ctx, bumpCounter, auth.AnchorType, auth.Amount))
	if err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, err
	}

	if _, err := postTransferTx(ctx, tx, entry, lines); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, err
	}

	if err := appendAuditTx(ctx, tx, audit); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, translateError("finalize commit", err)
	}

	logger.Info("obligation repository authorization finalized", logger.Fields{
		"authorizationId": auth.ID,
		"status":          auth.Status,
		"anchorType":      auth.AnchorType,
	})

	return auth, obligation, nil
}

func lockAuthorizationTx(ctx context.Context, tx *sql.Tx, authorizationID string) (domain.AnchorAuthorization, error) {
	query := fmt.Sprintf(`SELECT %s FROM anchor_authorizations WHERE id = $1 FOR UPDATE`, authorizationColumns)
	return scanAuthorizationRow(tx.QueryRowContext(ctx, query, authorizationID))
}

func (r *ObligationRepository) GetAuthorization(ctx context.Context, authorizationID string) (domain.AnchorAuthorization, error) {
	query := fmt.Sprintf(`SELECT %s FROM anchor_authorizations WHERE id = $1`, authorizationColumns)
	return scanAuthorizationRow(r.db.QueryRowContext(ctx, query, authorizationID))
}

func (r *ObligationRepository) GetAuthorizationByEventID(ctx context.Context, eventID string) (domain.AnchorAuthorization, error) {
	query := fmt.Sprintf(`SELECT %s FROM anchor_authorizations WHERE event_id = $1`, authorizationColumns)
	return scanAuthorizationRow(r.db.QueryRowContext(ctx, query, eventID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthorizationRow(row rowScanner) (domain.AnchorAuthorization, error) {
	var (
		auth        domain.AnchorAuthorization
		proofHash   sql.NullString
		failReason  sql.NullString
		fulfilledAt sql.NullTime
		expiredAt   sql.NullTime
		failedAt    sql.NullTime
	)

	err := row.Scan(
		&auth.ID,
		&auth.EventID,
		&auth.UserAddress,
		&auth.AnchorType,
		&auth.Units,
		&auth.Amount,
		&auth.Status,
		&auth.Attestation,
		&proofHash,
		&failReason,
		&auth.AuthorizedAt,
		&auth.ExpiresAt,
		&fulfilledAt,
		&expiredAt,
		&failedAt,
	)
	if err == sql.ErrNoRows {
		return domain.AnchorAuthorization{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.AnchorAuthorization{}, fmt.Errorf("scan authorization: %w", err)
	}

	if proofHash.Valid {
		value := proofHash.String
		auth.ProofHash = &value
	}
	if failReason.Valid {
		value := failReason.String
		auth.FailReason = &value
	}
	if fulfilledAt.Valid {
		value := fulfilledAt.Time
		auth.FulfilledAt = &value
	}
	if expiredAt.Valid {
		value := expiredAt.Time
		auth.ExpiredAt = &value
	}
	if failedAt.Valid {
		value := failedAt.Time
		auth.FailedAt = &value
	}

	return auth, nil
}

func (r *ObligationRepository) GetObligation(ctx context.Context, anchorType string) (domain.AnchorObligation, error) {
	const query = `
SELECT anchor_type, total_authorized, total_fulfilled, total_expired, halted, halt_reason, updated_at
FROM anchor_obligations
WHERE anchor_type = $1`

	return scanObligationRow(r.db.QueryRowContext(ctx, query, anchorType))
}

func scanObligationRow(row rowScanner) (domain.AnchorObligation, error) {
	var (
		obligation domain.AnchorObligation
		haltReason sql.NullString
	)

	err := row.Scan(
		&obligation.AnchorType,
		&obligation.TotalAuthorized,
		&obligation.TotalFulfilled,
		&obligation.TotalExpired,
		&obligation.Halted,
		&haltReason,
		&obligation.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.AnchorObligation{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.AnchorObligation{}, translateError("scan obligation", err)
	}

	if haltReason.Valid {
		value := haltReason.String
		obligation.HaltReason = &value
	}

	return obligation, nil
}

func (r *ObligationRepository) Halt(ctx context.Context, anchorType string, reason string) error {
	const query = `
INSERT INTO anchor_obligations (anchor_type, halted, halt_reason)
VALUES ($1, TRUE, $2)
ON CONFLICT (anchor_type) DO UPDATE
SET halted = TRUE,
    halt_reason = EXCLUDED.halt_reason,
    updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, anchorType, reason); err != nil {
		return translateError("halt anchor", err)
	}

	logger.Error("obligation repository anchor halted", nil, logger.Fields{
		"anchorType": anchorType,
		"reason":     reason,
	})
	return nil
}

func (r *ObligationRepository) SumAuthorizedSince(ctx context.Context, anchorType string, since time.Time) (decimal.Decimal, error) {
	const query = `
SELECT COALESCE(SUM(amount), 0)
FROM anchor_authorizations
WHERE anchor_type = $1 AND authorized_at >= $2`

	var total decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, anchorType, since).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum authorized since: %w", err)
	}
	return total, nil
}

func (r *ObligationRepository) ListAuthorized(ctx context.Context, limit int) ([]domain.AnchorAuthorization, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM anchor_authorizations
WHERE status = 'AUTHORIZED'
ORDER BY authorized_at
LIMIT $1`, authorizationColumns)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list authorized: %w", err)
	}
	defer rows.Close()

	var out []domain.AnchorAuthorization
	for rows.Next() {
		auth, err := scanAuthorizationRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, auth)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list authorized: %w", err)
	}
	return out, nil
}
