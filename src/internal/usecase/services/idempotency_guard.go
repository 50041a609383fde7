package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
	"golang.org/x/sync/singleflight"
)

// IdempotencyGuard serializes clearing work per intent id. The singleflight
// group coalesces concurrent duplicates inside this process: the second
// caller blocks until the first flight completes and receives the same
// result. The persistent record replays completed intents across restarts
// and across processes, where the unique constraint on the intent id is the
// final arbiter.
type IdempotencyGuard struct {
	repo  repo_interfaces.IdempotencyRepository
	group singleflight.Group
}

func NewIdempotencyGuard(repo repo_interfaces.IdempotencyRepository) *IdempotencyGuard {
	return &IdempotencyGuard{repo: repo}
}

// GuardedFn computes a clearing result. It reports record=true once an
// authorization exists for the intent, which makes the result durable;
// pre-authorization failures report record=false so a later retry may
// succeed.
type GuardedFn func(ctx context.Context) (result domain.ClearingResult, record bool, err error)

type flightOutcome struct {
	result      domain.ClearingResult
	payloadHash string
}

func (g *IdempotencyGuard) Do(ctx context.Context, intentID, payloadHash string, fn GuardedFn) (domain.ClearingResult, error) {
	if stored, ok, err := g.lookup(ctx, intentID, payloadHash); err != nil || ok {
		return stored, err
	}

	value, err, shared := g.group.Do(intentID, func() (any, error) {
		// A concurrent flight for this intent may have completed and been
		// stored between the first lookup and lock acquisition.
		record, err := g.repo.Get(ctx, intentID)
		if err == nil {
			return flightOutcome{result: record.Result, payloadHash: record.PayloadHash}, nil
		}
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return nil, err
		}

		result, durable, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if !durable {
			return flightOutcome{result: result, payloadHash: payloadHash}, nil
		}

		if err := g.repo.Save(ctx, domain.IdempotencyRecord{
			IntentID:    intentID,
			PayloadHash: payloadHash,
			Result:      result,
		}); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				// Another process got there first; its result wins.
				stored, getErr := g.repo.Get(ctx, intentID)
				if getErr != nil {
					return nil, getErr
				}
				return flightOutcome{result: stored.Result, payloadHash: stored.PayloadHash}, nil
			}
			return nil, fmt.Errorf("store clearing result: %w", err)
		}

		return flightOutcome{result: result, payloadHash: payloadHash}, nil
	})
	if err != nil {
		return domain.ClearingResult{}, err
	}

	outcome := value.(flightOutcome)
	if outcome.payloadHash != payloadHash {
		return domain.ClearingResult{}, domain.ErrIdempotencyConflict
	}

	if shared {
		logger.Info("idempotency guard coalesced duplicate intent", logger.Fields{
			"intentId": intentID,
		})
	}

	return outcome.result, nil
}

func (g *IdempotencyGuard) lookup(ctx context.Context, intentID, payloadHash string) (domain.ClearingResult, bool, error) {
	record, err := g.repo.Get(ctx, intentID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.ClearingResult{}, false, nil
	}
	if err != nil {
		return domain.ClearingResult{}, false, err
	}

	if record.PayloadHash != payloadHash {
		return domain.ClearingResult{}, false, domain.ErrIdempotencyConflict
	}

	logger.Info("idempotency guard replayed stored result", logger.Fields{
		"intentId": intentID,
		"status":   record.Result.Status,
	})
	return record.Result, true, nil
}

// HashIntent canonicalizes the fields that define one logical clearing
// request. A retried intent must hash identically; a reused intent id with
// different parameters must not.
func HashIntent(userAddress, anchorType string, units int64, amount string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%s", userAddress, anchorType, units, amount))
	return hex.EncodeToString(sum[:])
}
