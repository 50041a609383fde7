package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
)

// LedgerService is the only gateway for journal mutations. Entries it rejects
// never reach storage; entries it posts are immutable afterwards, and
// corrections are expressed as new reversing transfers.
type LedgerService struct {
	ledgerRepo repo_interfaces.LedgerRepository
}

var _ service_interfaces.LedgerService = (*LedgerService)(nil)

func NewLedgerService(ledgerRepo repo_interfaces.LedgerRepository) *LedgerService {
	return &LedgerService{ledgerRepo: ledgerRepo}
}

func (s *LedgerService) PrepareTransfer(description, source string, externalRef *string, movements []service_interfaces.Movement) (domain.JournalEntry, []domain.JournalLine, error) {
	if len(movements) < 2 {
		return domain.JournalEntry{}, nil, fmt.Errorf("prepare transfer: %w", domain.ErrImbalancedEntry)
	}

	entryID := uuid.NewString()
	lines := make([]domain.JournalLine, 0, len(movements))
	for i, movement := range movements {
		if movement.Amount.LessThanOrEqual(decimal.Zero) {
			return domain.JournalEntry{}, nil, domain.ErrInvalidAmount
		}
		lines = append(lines, domain.JournalLine{
			ID:             uuid.NewString(),
			JournalEntryID: entryID,
			AccountID:      movement.AccountID,
			Direction:      movement.Direction,
			Amount:         movement.Amount,
			LineNumber:     i + 1,
		})
	}

	debits, credits := domain.LineTotals(lines)
	if !debits.Equal(credits) {
		logger.Error("ledger service rejected imbalanced entry", domain.ErrImbalancedEntry, logger.Fields{
			"debitTotal":  debits.String(),
			"creditTotal": credits.String(),
		})
		return domain.JournalEntry{}, nil, domain.ErrImbalancedEntry
	}

	entry := domain.JournalEntry{
		ID:          entryID,
		JournalID:   uuid.NewString(),
		Date:        time.Now().UTC(),
		Description: description,
		Source:      source,
		Status:      domain.EntryStatusPosted,
		ExternalRef: externalRef,
	}

	return entry, lines, nil
}

func (s *LedgerService) PostTransfer(ctx context.Context, description, source string, externalRef *string, movements []service_interfaces.Movement) (domain.JournalEntry, error) {
	entry, lines, err := s.PrepareTransfer(description, source, externalRef, movements)
	if err != nil {
		return domain.JournalEntry{}, err
	}

	posted, err := s.ledgerRepo.PostTransfer(ctx, entry, lines)
	if err != nil {
		return domain.JournalEntry{}, err
	}
	return posted, nil
}

func (s *LedgerService) AccountByEntity(ctx context.Context, entity string) (domain.Account, error) {
	return s.ledgerRepo.GetAccountByEntity(ctx, entity)
}

func (s *LedgerService) AvailableBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	balance, err := s.ledgerRepo.GetBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Balance, nil
}
