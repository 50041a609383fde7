package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
	"github.com/stretchr/testify/require"
)

func authorizeCommand(intentID, amount string) service_interfaces.AuthorizeCommand {
	return service_interfaces.AuthorizeCommand{
		IntentID:    intentID,
		UserAddress: testUserAddress,
		AnchorType:  testAnchorType,
		Units:       25,
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestAuthorize_HoldsFundsAndBumpsCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth, err := f.obligations.Authorize(ctx, authorizeCommand("intent-1", "25.00"))
	require.NoError(t, err)
	require.Equal(t, domain.AuthorizationStatusAuthorized, auth.Status)
	require.Equal(t, "intent-1", auth.EventID)
	require.NotEmpty(t, auth.Attestation)
	require.Equal(t, f.clock.Now().Add(24*time.Hour), auth.ExpiresAt)

	f.requireBalance(t, f.userAccount.ID, "75.00")
	f.requireBalance(t, f.anchorAccount.ID, "25.00")

	obligation, err := f.obligations.Obligation(ctx, testAnchorType)
	require.NoError(t, err)
	require.True(t, obligation.TotalAuthorized.Equal(decimal.RequireFromString("25.00")))
	require.True(t, obligation.TotalFulfilled.IsZero())
	require.True(t, obligation.Consistent())

	audits, err := f.store.ListByCorrelation(ctx, "intent-1")
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, domain.AuditActionAuthorize, audits[0].Action)
}

func TestFulfill_SettlesObligation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth, err := f.obligations.Authorize(ctx, authorizeCommand("intent-1", "25.00"))
	require.NoError(t, err)

	fulfilled, err := f.obligations.Fulfill(ctx, auth.ID, "issuer-proof-xyz")
	require.NoError(t, err)
	require.Equal(t, domain.AuthorizationStatusFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.ProofHash)
	require.Equal(t, ProofHash("issuer-proof-xyz"), *fulfilled.ProofHash)
	require.NotNil(t, fulfilled.FulfilledAt)

	// The hold left the anchor account and settled as revenue.
	f.requireBalance(t, f.userAccount.ID, "75.00")
	f.requireBalance(t, f.anchorAccount.ID, "0")
	f.requireBalance(t, f.settlementAccount.ID, "25.00")

	obligation, err := f.obligations.Obligation(ctx, testAnchorType)
	require.NoError(t, err)
	require.True(t, obligation.TotalFulfilled.Equal(decimal.RequireFromString("25.00")))
	require.True(t, obligation.TotalExpired.IsZero())
}

func TestFulfill_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth, err := f.obligations.Authorize(ctx, authorizeCommand("intent-1", "25.00"))
	require.NoError(t, err)

	first, err := f.obligations.Fulfill(ctx, auth.ID, "issuer-proof-xyz")
	require.NoError(t, err)
	second, err := f.obligations.Fulfill(ctx, auth.ID, "issuer-proof-xyz")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, *first.ProofHash, *second.ProofHash)

	// Counters and balances moved exactly once.
	obligation, err := f.obligations.Obligation(ctx, testAnchorType)
	require.NoError(t, err)
	require.True(t, obligation.TotalFulfilled.Equal(decimal.RequireFromString("25.00")))
	f.requireBalance(t, f.settlementAccount.ID, "25.00")
}

func TestExpire_RestoresUserBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth, err := f.obligations.Authorize(ctx, authorizeCommand("intent-1", "25.00"))
	require.NoError(t, err)
	f.requireBalance(t, f.userAccount.ID, "75.00")

	f.clock.Advance(24*time.Hour + time.Minute)

	expired, err := f.obligations.Expire(ctx, auth.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AuthorizationStatusExpired, expired.Status)
	require.NotNil(t, expired.ExpiredAt)

	f.requireBalance(t, f.userAccount.ID, "100.00")
	f.requireBalance(t, f.anchorAccount.ID, "0")
	f.requireBalance(t, f.settlementAccount.ID, "0")

	obligation, err := f.obligations.Obligation(ctx, testAnchorType)
	require.NoError(t, err)
	require.True(t, obligation.TotalExpired.Equal(decimal.RequireFromString("25.00")))
	require.True(t, obligation.Consistent())
}

func TestExpire_BeforeWindowIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth, err := f.obligations.Authorize(ctx, authorizeCommand("intent-1", "25.00"))
	require.NoError(t, err)

	f.clock.Advance(23 * time.Hour)
	_, err = f.obligations.Expire(ctx, auth.ID)
	require.ErrorIs(t, err, domain.ErrNotExpired)

	current, err := f.obligations.AuthorizationByEventID(ctx, "intent-1")
	require.NoError(t, err)
	require.Equal(t, domain.AuthorizationStatusAuthorized, current.Status)
}

func TestFail_ReleasesHoldAndCountsAsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth, err := f.obligations.Authorize(ctx, authorizeCommand("intent-1", "25.00"))
	require.NoError(t, err)

	failed, err := f.obligations.Fail(ctx, auth.ID, "item out of stock")
	require.NoError(t, err)
	require.Equal(t, domain.AuthorizationStatusFailed, failed.Status)
	require.NotNil(t, failed.FailReason)
	require.Equal(t, "item out of stock", *failed.FailReason)

	f.requireBalance(t, f.userAccount.ID, "100.00")

	obligation, err := f.obligations.Obligation(ctx, testAnchorType)
	require.NoError(t, err)
	require.True(t, obligation.TotalExpired.Equal(decimal.RequireFromString("25.00")))
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	auth, err := f.obligations.Authorize(ctx, authorizeCommand("intent-1", "25.00"))
	require.NoError(t, err)
	_, err = f.obligations.Fulfill(ctx, auth.ID, "issuer-proof-xyz")
	require.NoError(t, err)

	_, err = f.obligations.Fail(ctx, auth.ID, "too late")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.obligations.Expire(ctx, auth.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Neither rejected transition moved any balance or counter.
	f.requireBalance(t, f.settlementAccount.ID, "25.00")
	obligation, err := f.obligations.Obligation(ctx, testAnchorType)
	require.NoError(t, err)
	require.True(t, obligation.TotalExpired.IsZero())
	require.True(t, obligation.Consistent())
}

func TestAuthorize_RejectsInactiveAnchor(t *testing.T) {
	f := newFixture(t)

	cmd := authorizeCommand("intent-1", "25.00")
	cmd.AnchorType = "UTILITY"
	_, err := f.obligations.Authorize(context.Background(), cmd)
	require.ErrorIs(t, err, domain.ErrAnchorInactive)

	cmd.AnchorType = "UNKNOWN"
	_, err = f.obligations.Authorize(context.Background(), cmd)
	require.ErrorIs(t, err, domain.ErrAnchorInactive)
}

func TestAuthorize_RejectsHaltedAnchor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Halt(ctx, testAnchorType, "manual halt"))

	_, err := f.obligations.Authorize(ctx, authorizeCommand("intent-1", "25.00"))
	require.ErrorIs(t, err, domain.ErrAnchorHalted)
	f.requireBalance(t, f.userAccount.ID, "100.00")
}

func TestAuthorize_RejectsInsufficientBalance(t *testing.T) {
	f := newFixture(t)

	_, err := f.obligations.Authorize(context.Background(), authorizeCommand("intent-1", "100.01"))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	f.requireBalance(t, f.userAccount.ID, "100.00")
}

func TestAuthorize_EnforcesDailyCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Give the user room to exceed the 2500 cap.
	f.store.SeedAccount(domain.Account{
		Name:     "Funded Wallet",
		Class:    domain.AccountClassLiability,
		Entity:   "user:0xFUNDED",
		IsActive: true,
	}, decimal.RequireFromString("5000"))

	cmd := service_interfaces.AuthorizeCommand{
		IntentID:    "intent-1",
		UserAddress: "0xFUNDED",
		AnchorType:  testAnchorType,
		Units:       1,
		Amount:      decimal.RequireFromString("2000"),
	}
	_, err := f.obligations.Authorize(ctx, cmd)
	require.NoError(t, err)

	cmd.IntentID = "intent-2"
	cmd.Amount = decimal.RequireFromString("600")
	_, err = f.obligations.Authorize(ctx, cmd)
	require.ErrorIs(t, err, domain.ErrDailyCapExceeded)

	// A new UTC day resets the window.
	f.clock.Advance(24 * time.Hour)
	_, err = f.obligations.Authorize(ctx, cmd)
	require.NoError(t, err)
}

func TestAuthorize_DuplicateIntentFailsWholeTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.obligations.Authorize(ctx, authorizeCommand("intent-1", "25.00"))
	require.NoError(t, err)

	_, err = f.obligations.Authorize(ctx, authorizeCommand("intent-1", "10.00"))
	require.ErrorIs(t, err, domain.ErrDuplicateKey)

	// The duplicate left no trace: one hold, one counter bump.
	f.requireBalance(t, f.userAccount.ID, "75.00")
	obligation, err := f.obligations.Obligation(ctx, testAnchorType)
	require.NoError(t, err)
	require.True(t, obligation.TotalAuthorized.Equal(decimal.RequireFromString("25.00")))
}
