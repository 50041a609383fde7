package service_interfaces

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

// Movement is one side of a transfer expressed against a resolved account.
type Movement struct {
	AccountID int64
	Direction domain.LineDirection
	Amount    decimal.Decimal
}

type LedgerService interface {
	// PrepareTransfer validates the movements (positive amounts, balanced
	// debit and credit totals) and assembles the entry with its lines. No
	// state is touched.
	PrepareTransfer(description, source string, externalRef *string, movements []Movement) (domain.JournalEntry, []domain.JournalLine, error)
	// PostTransfer validates and commits a transfer in one transaction.
	PostTransfer(ctx context.Context, description, source string, externalRef *string, movements []Movement) (domain.JournalEntry, error)
	AccountByEntity(ctx context.Context, entity string) (domain.Account, error)
	AvailableBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
}
