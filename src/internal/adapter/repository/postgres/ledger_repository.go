package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
)

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) PostTransfer(ctx context.Context, entry domain.JournalEntry, lines []domain.JournalLine) (domain.JournalEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("post transfer begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	posted, err := postTransferTx(ctx, tx, entry, lines)
	if err != nil {
		return domain.JournalEntry{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.JournalEntry{}, fmt.Errorf("post transfer commit: %w", err)
	}

	logger.Info("ledger repository transfer posted", logger.Fields{
		"journalEntryId": posted.ID,
		"journalId":      posted.JournalID,
		"lines":          len(lines),
	})

	return posted, nil
}

// postTransferTx inserts the entry with its lines and folds every line into
// the referenced balances under row-level locks. Runs inside the caller's
// transaction so composite operations stay all-or-nothing.
func postTransferTx(ctx context.Context, tx *sql.Tx, entry domain.JournalEntry, lines []domain.JournalLine) (domain.JournalEntry, error) {
	debits, credits := domain.LineTotals(lines)
	if !debits.Equal(credits) {
		return domain.JournalEntry{}, domain.ErrImbalancedEntry
	}

	const insertEntry = `
INSERT INTO journal_entries (id, journal_id, entry_date, description, source, status, external_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`

	if err := tx.QueryRowContext(
		ctx,
		insertEntry,
		entry.ID,
		entry.JournalID,
		entry.Date,
		entry.Description,
		entry.Source,
		entry.Status,
		entry.ExternalRef,
	).Scan(&entry.CreatedAt); err != nil {
		return domain.JournalEntry{}, translateError("insert journal entry", err)
	}

	const insertLine = `
INSERT INTO journal_entry_lines (id, journal_entry_id, account_id, line_type, amount, line_number)
VALUES ($1, $2, $3, $4, $5, $6)`

	deltas := map[int64]decimal.Decimal{}
	for _, line := range lines {
		if _, err := tx.ExecContext(
			ctx,
			insertLine,
			line.ID,
			entry.ID,
			line.AccountID,
			line.Direction,
			line.Amount,
			line.LineNumber,
		); err != nil {
			return domain.JournalEntry{}, translateError("insert journal line", err)
		}

		class, err := accountClassTx(ctx, tx, line.AccountID)
		if err != nil {
			return domain.JournalEntry{}, err
		}
		deltas[line.AccountID] = deltas[line.AccountID].Add(domain.BalanceDelta(class, line.Direction, line.Amount))
	}

	for accountID, delta := range deltas {
		if err := applyBalanceDeltaTx(ctx, tx, accountID, delta); err != nil {
			return domain.JournalEntry{}, err
		}
	}

	return entry, nil
}

func accountClassTx(ctx context.Context, tx *sql.Tx, accountID int64) (domain.AccountClass, error) {
	var class domain.AccountClass
	err := tx.QueryRowContext(ctx, `SELECT class FROM accounts WHERE id = $1`, accountID).Scan(&class)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("account %d: %w", accountID, domain.ErrRecordNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load account class: %w", err)
	}
	return class, nil
}

func applyBalanceDeltaTx(ctx context.Context, tx *sql.Tx, accountID int64, delta decimal.Decimal) error {
	const update = `
UPDATE account_balances
SET balance = balance + $2,
    updated_at = NOW()
WHERE account_id = $1
RETURNING balance, (SELECT class FROM accounts WHERE id = $1)`

	var (
		balance decimal.Decimal
		class   domain.AccountClass
	)
	if err := tx.QueryRowContext(ctx, update, accountID, delta).Scan(&balance, &class); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("account balance %d: %w", accountID, domain.ErrRecordNotFound)
		}
		return translateError("apply balance delta", err)
	}

	if balance.IsNegative() && class == domain.AccountClassLiability {
		return domain.ErrNegativeBalance
	}

	return nil
}

func (r *LedgerRepository) GetAccount(ctx context.Context, accountID int64) (domain.Account, error) {
	const query = `SELECT id, name, class, entity, is_active, created_at FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, accountID))
}

func (r *LedgerRepository) GetAccountByEntity(ctx context.Context, entity string) (domain.Account, error) {
	const query = `SELECT id, name, class, entity, is_active, created_at FROM accounts WHERE entity = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, entity))
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var account domain.Account
	err := row.Scan(&account.ID, &account.Name, &account.Class, &account.Entity, &account.IsActive, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.Account{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}

func (r *LedgerRepository) GetBalance(ctx context.Context, accountID int64) (domain.AccountBalance, error) {
	const query = `SELECT account_id, balance, updated_at FROM account_balances WHERE account_id = $1`

	var balance domain.AccountBalance
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&balance.AccountID, &balance.Balance, &balance.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.AccountBalance{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.AccountBalance{}, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (r *LedgerRepository) GetEntry(ctx context.Context, entryID string) (domain.JournalEntry, error) {
	const query = `
SELECT id, journal_id, entry_date, description, source, status, external_ref, mirrored, mirrored_at, created_at
FROM journal_entries
WHERE id = $1`

	return scanEntry(r.db.QueryRowContext(ctx, query, entryID))
}

func scanEntry(row *sql.Row) (domain.JournalEntry, error) {
	var (
		entry       domain.JournalEntry
		externalRef sql.NullString
		mirroredAt  sql.NullTime
	)

	err := row.Scan(
		&entry.ID,
		&entry.JournalID,
		&entry.Date,
		&entry.Description,
		&entry.Source,
		&entry.Status,
		&externalRef,
		&entry.Mirrored,
		&mirroredAt,
		&entry.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.JournalEntry{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.JournalEntry{}, fmt.Errorf("scan journal entry: %w", err)
	}

	if externalRef.Valid {
		value := externalRef.String
		entry.ExternalRef = &value
	}
	if mirroredAt.Valid {
		value := mirroredAt.Time
		entry.MirroredAt = &value
	}

	return entry, nil
}

func (r *LedgerRepository) GetEntryLines(ctx context.Context, entryID string) ([]domain.JournalLine, error) {
	const query = `
SELECT id, journal_entry_id, account_id, line_type, amount, line_number
FROM journal_entry_lines
WHERE journal_entry_id = $1
ORDER BY line_number`

	rows, err := r.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("get entry lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.JournalLine
	for rows.Next() {
		var line domain.JournalLine
		if err := rows.Scan(&line.ID, &line.JournalEntryID, &line.AccountID, &line.Direction, &line.Amount, &line.LineNumber); err != nil {
			return nil, fmt.Errorf("scan journal line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get entry lines: %w", err)
	}
	return lines, nil
}

func (r *LedgerRepository) ListUnmirroredEntries(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	const query = `
SELECT id, journal_id, entry_date, description, source, status, external_ref, mirrored, mirrored_at, created_at
FROM journal_entries
WHERE mirrored = FALSE AND status = 'POSTED'
ORDER BY created_at
LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unmirrored entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var (
			entry       domain.JournalEntry
			externalRef sql.NullString
			mirroredAt  sql.NullTime
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.JournalID,
			&entry.Date,
			&entry.Description,
			&entry.Source,
			&entry.Status,
			&externalRef,
			&entry.Mirrored,
			&mirroredAt,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if externalRef.Valid {
			value := externalRef.String
			entry.ExternalRef = &value
		}
		if mirroredAt.Valid {
			value := mirroredAt.Time
			entry.MirroredAt = &value
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unmirrored entries: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepository) MarkMirrored(ctx context.Context, entryID string) error {
	const query = `
UPDATE journal_entries
SET mirrored = TRUE,
    mirrored_at = $2
WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, entryID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark mirrored: %w", err)
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}
