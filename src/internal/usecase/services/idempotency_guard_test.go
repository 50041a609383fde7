package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestGuard_ReplaysStoredResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash := HashIntent(testUserAddress, testAnchorType, 25, "25.00")

	var calls atomic.Int64
	fn := func(ctx context.Context) (domain.ClearingResult, bool, error) {
		calls.Add(1)
		return domain.ClearingResult{
			IntentID:        "intent-1",
			AuthorizationID: "auth-1",
			Status:          domain.ClearingStatusFulfilled,
		}, true, nil
	}

	first, err := f.guard.Do(ctx, "intent-1", hash, fn)
	require.NoError(t, err)
	second, err := f.guard.Do(ctx, "intent-1", hash, fn)
	require.NoError(t, err)

	require.Equal(t, int64(1), calls.Load())
	require.Equal(t, first, second)
	require.Equal(t, domain.ClearingStatusFulfilled, second.Status)
}

func TestGuard_RejectsReusedIntentWithDifferentPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fn := func(ctx context.Context) (domain.ClearingResult, bool, error) {
		return domain.ClearingResult{IntentID: "intent-1", Status: domain.ClearingStatusFulfilled}, true, nil
	}

	_, err := f.guard.Do(ctx, "intent-1", HashIntent(testUserAddress, testAnchorType, 25, "25.00"), fn)
	require.NoError(t, err)

	_, err = f.guard.Do(ctx, "intent-1", HashIntent(testUserAddress, testAnchorType, 25, "99.00"), fn)
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

func TestGuard_DoesNotRecordPreAuthorizationFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash := HashIntent(testUserAddress, testAnchorType, 25, "25.00")

	var calls atomic.Int64
	fn := func(ctx context.Context) (domain.ClearingResult, bool, error) {
		calls.Add(1)
		return domain.ClearingResult{}, false, domain.ErrInsufficientBalance
	}

	_, err := f.guard.Do(ctx, "intent-1", hash, fn)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// The retry runs again because nothing durable happened.
	_, err = f.guard.Do(ctx, "intent-1", hash, fn)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.Equal(t, int64(2), calls.Load())
}

func TestGuard_CoalescesConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	hash := HashIntent(testUserAddress, testAnchorType, 25, "25.00")

	var calls atomic.Int64
	fn := func(ctx context.Context) (domain.ClearingResult, bool, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return domain.ClearingResult{
			IntentID:        "intent-1",
			AuthorizationID: "auth-1",
			Status:          domain.ClearingStatusFulfilled,
		}, true, nil
	}

	const workers = 16
	results := make([]domain.ClearingResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.guard.Do(ctx, "intent-1", hash, fn)
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(1), calls.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, results[0], results[i])
	}
}

func TestHashIntent_StableAndParameterSensitive(t *testing.T) {
	base := HashIntent(testUserAddress, testAnchorType, 25, "25.00")

	require.Equal(t, base, HashIntent(testUserAddress, testAnchorType, 25, "25.00"))
	require.NotEqual(t, base, HashIntent(testUserAddress, testAnchorType, 26, "25.00"))
	require.NotEqual(t, base, HashIntent(testUserAddress, testAnchorType, 25, "25.01"))
	require.NotEqual(t, base, HashIntent(testUserAddress, "FUEL", 25, "25.00"))
	require.NotEqual(t, base, HashIntent("0xOTHER", testAnchorType, 25, "25.00"))
}
