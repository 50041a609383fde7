package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/fulfillment"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/mirror"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/memory"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/config"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/stretchr/testify/require"
)

const (
	testUserAddress = "0xA1B2C3"
	testAnchorType  = "GROCERY"
)

type fixture struct {
	store       *memory.Store
	ledger      *LedgerService
	obligations *ObligationService
	guard       *IdempotencyGuard
	clock       *fakeClock

	userAccount       domain.Account
	anchorAccount     domain.Account
	settlementAccount domain.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	user := store.SeedAccount(domain.Account{
		Name:     "User Wallet",
		Class:    domain.AccountClassLiability,
		Entity:   "user:" + testUserAddress,
		IsActive: true,
	}, decimal.RequireFromString("100.00"))
	anchor := store.SeedAccount(domain.Account{
		Name:     "Grocery Anchor Obligations",
		Class:    domain.AccountClassLiability,
		Entity:   "anchor:" + testAnchorType,
		IsActive: true,
	}, decimal.Zero)
	settlement := store.SeedAccount(domain.Account{
		Name:     "Settlement Revenue",
		Class:    domain.AccountClassIncome,
		Entity:   "system:settlement",
		IsActive: true,
	}, decimal.Zero)

	clock := &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}

	ledger := NewLedgerService(store)
	obligations := NewObligationService(store, ledger, map[string]config.AnchorPolicy{
		testAnchorType: {
			DailyCap:      decimal.RequireFromString("2500"),
			ExpirySeconds: 86400,
			Active:        true,
		},
		"UTILITY": {
			ExpirySeconds: 3600,
			Active:        false,
		},
	}, "test-signing-key").WithClock(clock.Now)

	return &fixture{
		store:             store,
		ledger:            ledger,
		obligations:       obligations,
		guard:             NewIdempotencyGuard(store),
		clock:             clock,
		userAccount:       user,
		anchorAccount:     anchor,
		settlementAccount: settlement,
	}
}

func (f *fixture) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()

	balance, err := f.store.GetBalance(context.Background(), accountID)
	require.NoError(t, err)
	return balance.Balance
}

func (f *fixture) requireBalance(t *testing.T, accountID int64, want string) {
	t.Helper()
	require.True(t, f.balance(t, accountID).Equal(decimal.RequireFromString(want)),
		"account %d balance = %s, want %s", accountID, f.balance(t, accountID), want)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubAdapter scripts the issuer boundary. Each Execute consumes the scripted
// outcome; QueryStatus answers from the status field.
type stubAdapter struct {
	executeProof string
	executeErr   error
	executeCalls atomic.Int64
	executeDelay time.Duration

	status    fulfillment.StatusResult
	statusErr error
}

func (a *stubAdapter) Execute(ctx context.Context, req fulfillment.ExecuteRequest) (string, error) {
	a.executeCalls.Add(1)
	if a.executeDelay > 0 {
		select {
		case <-time.After(a.executeDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if a.executeErr != nil {
		return "", a.executeErr
	}
	return a.executeProof, nil
}

func (a *stubAdapter) QueryStatus(ctx context.Context, intentID string) (fulfillment.StatusResult, error) {
	if a.statusErr != nil {
		return fulfillment.StatusResult{}, a.statusErr
	}
	return a.status, nil
}

type capturingEventPublisher struct {
	mu     sync.Mutex
	events []domain.AnchorEvent
	err    error
}

func (p *capturingEventPublisher) Publish(ctx context.Context, event domain.AnchorEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingEventPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, event := range p.events {
		out[i] = event.Type
	}
	return out
}

type capturingMirrorPublisher struct {
	mu      sync.Mutex
	records []mirror.Record
	failAt  int
}

func (p *capturingMirrorPublisher) Publish(ctx context.Context, record mirror.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt > 0 && len(p.records)+1 == p.failAt {
		return errors.New("mirror broker unavailable")
	}
	p.records = append(p.records, record)
	return nil
}

func (p *capturingMirrorPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}
