package repo_interfaces

import (
	"context"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

type LedgerRepository interface {
	// PostTransfer inserts the entry with all of its lines and folds every
	// line into the referenced account balances inside one transaction.
	// Committed entries and lines are never updated or deleted.
	PostTransfer(ctx context.Context, entry domain.JournalEntry, lines []domain.JournalLine) (domain.JournalEntry, error)
	GetAccount(ctx context.Context, accountID int64) (domain.Account, error)
	GetAccountByEntity(ctx context.Context, entity string) (domain.Account, error)
	GetBalance(ctx context.Context, accountID int64) (domain.AccountBalance, error)
	GetEntry(ctx context.Context, entryID string) (domain.JournalEntry, error)
	GetEntryLines(ctx context.Context, entryID string) ([]domain.JournalLine, error)
	ListUnmirroredEntries(ctx context.Context, limit int) ([]domain.JournalEntry, error)
	MarkMirrored(ctx context.Context, entryID string) error
}
