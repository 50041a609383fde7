package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

// Store is an in-memory implementation of every repository interface. A single
// mutex makes each composite operation atomic: all validation happens before
// the first mutation, so a failed call leaves no partial state behind.
type Store struct {
	mu sync.Mutex

	accounts         map[int64]domain.Account
	accountsByEntity map[string]int64
	balances         map[int64]decimal.Decimal
	nextAccountID    int64

	entries    map[string]domain.JournalEntry
	entryOrder []string
	lines      map[string][]domain.JournalLine

	authorizations        map[string]domain.AnchorAuthorization
	authorizationsByEvent map[string]string
	authorizationOrder    []string
	obligations           map[string]domain.AnchorObligation

	idempotency map[string]domain.IdempotencyRecord
	audits      []domain.AuditEvent
}

var _ repo_interfaces.LedgerRepository = (*Store)(nil)
var _ repo_interfaces.ObligationRepository = (*Store)(nil)
var _ repo_interfaces.IdempotencyRepository = (*Store)(nil)
var _ repo_interfaces.AuditRepository = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		accounts:              map[int64]domain.Account{},
		accountsByEntity:      map[string]int64{},
		balances:              map[int64]decimal.Decimal{},
		nextAccountID:         1,
		entries:               map[string]domain.JournalEntry{},
		lines:                 map[string][]domain.JournalLine{},
		authorizations:        map[string]domain.AnchorAuthorization{},
		authorizationsByEvent: map[string]string{},
		obligations:           map[string]domain.AnchorObligation{},
		idempotency:           map[string]domain.IdempotencyRecord{},
	}
}

// SeedAccount registers an account with an opening balance. Used by tests and
// local development in place of migrations.
func (s *Store) SeedAccount(account domain.Account, opening decimal.Decimal) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == 0 {
		account.ID = s.nextAccountID
		s.nextAccountID++
	} else if account.ID >= s.nextAccountID {
		s.nextAccountID = account.ID + 1
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	s.accounts[account.ID] = account
	if account.Entity != "" {
		s.accountsByEntity[account.Entity] = account.ID
	}
	s.balances[account.ID] = opening

	return account
}

func (s *Store) PostTransfer(ctx context.Context, entry domain.JournalEntry, lines []domain.JournalLine) (domain.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.postTransferLocked(entry, lines)
}

// postTransferLocked validates the whole posting before touching any balance.
func (s *Store) postTransferLocked(entry domain.JournalEntry, lines []domain.JournalLine) (domain.JournalEntry, error) {
	if _, exists := s.entries[entry.ID]; exists {
		return domain.JournalEntry{}, fmt.Errorf("post transfer: %w", domain.ErrDuplicateKey)
	}
	for _, existing := range s.entries {
		if existing.JournalID == entry.JournalID {
			return domain.JournalEntry{}, fmt.Errorf("post transfer: %w", domain.ErrDuplicateKey)
		}
	}

	debits, credits := domain.LineTotals(lines)
	if !debits.Equal(credits) {
		return domain.JournalEntry{}, domain.ErrImbalancedEntry
	}

	deltas := map[int64]decimal.Decimal{}
	for _, line := range lines {
		if line.Amount.LessThanOrEqual(decimal.Zero) {
			return domain.JournalEntry{}, domain.ErrInvalidAmount
		}

		account, ok := s.accounts[line.AccountID]
		if !ok {
			return domain.JournalEntry{}, fmt.Errorf("post transfer account %d: %w", line.AccountID, domain.ErrRecordNotFound)
		}

		delta := domain.BalanceDelta(account.Class, line.Direction, line.Amount)
		deltas[line.AccountID] = deltas[line.AccountID].Add(delta)
	}

	for accountID, delta := range deltas {
		account := s.accounts[accountID]
		next := s.balances[accountID].Add(delta)
		if next.IsNegative() && account.Class == domain.AccountClassLiability {
			return domain.JournalEntry{}, domain.ErrNegativeBalance
		}
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	for accountID, delta := range deltas {
		s.balances[accountID] = s.balances[accountID].Add(delta)
	}

	stored := make([]domain.JournalLine, len(lines))
	copy(stored, lines)
	s.entries[entry.ID] = entry
	s.entryOrder = append(s.entryOrder, entry.ID)
	s.lines[entry.ID] = stored

	return entry, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID int64) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return domain.Account{}, domain.ErrRecordNotFound
	}
	return account, nil
}

func (s *Store) GetAccountByEntity(ctx context.Context, entity string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accountID, ok := s.accountsByEntity[entity]
	if !ok {
		return domain.Account{}, domain.ErrRecordNotFound
	}
	return s.accounts[accountID], nil
}

func (s *Store) GetBalance(ctx context.Context, accountID int64) (domain.AccountBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; !ok {
		return domain.AccountBalance{}, domain.ErrRecordNotFound
	}

	return domain.AccountBalance{
		AccountID: accountID,
		Balance:   s.balances[accountID],
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func (s *Store) GetEntry(ctx context.Context, entryID string) (domain.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return domain.JournalEntry{}, domain.ErrRecordNotFound
	}
	return entry, nil
}

func (s *Store) GetEntryLines(ctx context.Context, entryID string) ([]domain.JournalLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, ok := s.lines[entryID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	out := make([]domain.JournalLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *Store) ListUnmirroredEntries(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.JournalEntry, 0, limit)
	for _, id := range s.entryOrder {
		entry := s.entries[id]
		if entry.Mirrored || entry.Status != domain.EntryStatusPosted {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkMirrored(ctx context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return domain.ErrRecordNotFound
	}

	now := time.Now().UTC()
	entry.Mirrored = true
	entry.MirroredAt = &now
	s.entries[entryID] = entry
	return nil
}

func (s *Store) Authorize(ctx context.Context, auth domain.AnchorAuthorization, entry domain.JournalEntry, lines []domain.JournalLine, audit domain.AuditEvent) (domain.AnchorAuthorization, domain.AnchorObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.authorizationsByEvent[auth.EventID]; exists {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, fmt.Errorf("authorize: %w", domain.ErrDuplicateKey)
	}

	posted, err := s.postTransferLocked(entry, lines)
	if err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, err
	}
	_ = posted

	obligation := s.obligationLocked(auth.AnchorType)
	obligation.TotalAuthorized = obligation.TotalAuthorized.Add(auth.Amount)
	obligation.UpdatedAt = time.Now().UTC()
	s.obligations[auth.AnchorType] = obligation

	s.authorizations[auth.ID] = auth
	s.authorizationsByEvent[auth.EventID] = auth.ID
	s.authorizationOrder = append(s.authorizationOrder, auth.ID)
	s.appendAuditLocked(audit)

	return auth, obligation, nil
}

func (s *Store) Finalize(ctx context.Context, authorizationID string, next domain.AuthorizationStatus, update repo_interfaces.FinalizeUpdate, entry domain.JournalEntry, lines []domain.JournalLine, audit domain.AuditEvent) (domain.AnchorAuthorization, domain.AnchorObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.authorizations[authorizationID]
	if !ok {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, domain.ErrRecordNotFound
	}
	if auth.Status != domain.AuthorizationStatusAuthorized {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, domain.ErrInvalidTransition
	}
	if !next.Terminal() {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, domain.ErrInvalidTransition
	}

	if _, err := s.postTransferLocked(entry, lines); err != nil {
		return domain.AnchorAuthorization{}, domain.AnchorObligation{}, err
	}

	obligation := s.obligationLocked(auth.AnchorType)
	at := update.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	switch next {
	case domain.AuthorizationStatusFulfilled:
		obligation.TotalFulfilled = obligation.TotalFulfilled.Add(auth.Amount)
		auth.FulfilledAt = &at
		auth.ProofHash = update.ProofHash
	case domain.AuthorizationStatusExpired:
		obligation.TotalExpired = obligation.TotalExpired.Add(auth.Amount)
		auth.ExpiredAt = &at
	case domain.AuthorizationStatusFailed:
		obligation.TotalExpired = obligation.TotalExpired.Add(auth.Amount)
		auth.FailedAt = &at
		auth.FailReason = update.FailReason
	}

	auth.Status = next
	obligation.UpdatedAt = time.Now().UTC()
	s.authorizations[authorizationID] = auth
	s.obligations[auth.AnchorType] = obligation
	s.appendAuditLocked(audit)

	return auth, obligation, nil
}

func (s *Store) GetAuthorization(ctx context.Context, authorizationID string) (domain.AnchorAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, ok := s.authorizations[authorizationID]
	if !ok {
		return domain.AnchorAuthorization{}, domain.ErrRecordNotFound
	}
	return auth, nil
}

func (s *Store) GetAuthorizationByEventID(ctx context.Context, eventID string) (domain.AnchorAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authorizationID, ok := s.authorizationsByEvent[eventID]
	if !ok {
		return domain.AnchorAuthorization{}, domain.ErrRecordNotFound
	}
	return s.authorizations[authorizationID], nil
}

func (s *Store) GetObligation(ctx context.Context, anchorType string) (domain.AnchorObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obligation, ok := s.obligations[anchorType]
	if !ok {
		return domain.AnchorObligation{}, domain.ErrRecordNotFound
	}
	return obligation, nil
}

func (s *Store) Halt(ctx context.Context, anchorType string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obligation := s.obligationLocked(anchorType)
	obligation.Halted = true
	obligation.HaltReason = &reason
	obligation.UpdatedAt = time.Now().UTC()
	s.obligations[anchorType] = obligation
	return nil
}

func (s *Store) SumAuthorizedSince(ctx context.Context, anchorType string, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, auth := range s.authorizations {
		if auth.AnchorType != anchorType || auth.AuthorizedAt.Before(since) {
			continue
		}
		total = total.Add(auth.Amount)
	}
	return total, nil
}

func (s *Store) ListAuthorized(ctx context.Context, limit int) ([]domain.AnchorAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.AnchorAuthorization, 0, limit)
	for _, id := range s.authorizationOrder {
		auth := s.authorizations[id]
		if auth.Status != domain.AuthorizationStatusAuthorized {
			continue
		}
		out = append(out, auth)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, intentID string) (domain.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[intentID]
	if !ok {
		return domain.IdempotencyRecord{}, domain.ErrRecordNotFound
	}
	return record, nil
}

func (s *Store) Save(ctx context.Context, record domain.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.idempotency[record.IntentID]; exists {
		return fmt.Errorf("save idempotency record: %w", domain.ErrDuplicateKey)
	}

	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	s.idempotency[record.IntentID] = record
	return nil
}

func (s *Store) UpdateResult(ctx context.Context, intentID string, result domain.ClearingResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.idempotency[intentID]
	if !ok {
		return domain.ErrRecordNotFound
	}

	record.Result = result
	record.UpdatedAt = time.Now().UTC()
	s.idempotency[intentID] = record
	return nil
}

func (s *Store) Append(ctx context.Context, event domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendAuditLocked(event)
	return nil
}

func (s *Store) ListByCorrelation(ctx context.Context, correlationID string) ([]domain.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AuditEvent
	for _, event := range s.audits {
		if event.CorrelationID == correlationID {
			out = append(out, event)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) obligationLocked(anchorType string) domain.AnchorObligation {
	if obligation, ok := s.obligations[anchorType]; ok {
		return obligation
	}

	return domain.AnchorObligation{
		AnchorType:      anchorType,
		TotalAuthorized: decimal.Zero,
		TotalFulfilled:  decimal.Zero,
		TotalExpired:    decimal.Zero,
	}
}

func (s *Store) appendAuditLocked(event domain.AuditEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.audits = append(s.audits, event)
}
