package services

import (
	"context"
	"errors"
	"time"

	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/fulfillment"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
)

const (
	reconcileBatchSize   = 100
	reconcileCallTimeout = 15 * time.Second
)

// ReconciliationService resolves authorizations the request path left open.
// It asks the adapter what actually happened and applies the answer; an
// UNKNOWN answer only ever leads to expiry, never to fulfill or fail.
type ReconciliationService struct {
	obligationRepo  repo_interfaces.ObligationRepository
	idempotencyRepo repo_interfaces.IdempotencyRepository
	obligations     service_interfaces.ObligationService
	adapter         fulfillment.Adapter
	publisher       service_interfaces.EventPublisher
	interval        time.Duration
	nowFn           func() time.Time
}

func NewReconciliationService(
	obligationRepo repo_interfaces.ObligationRepository,
	idempotencyRepo repo_interfaces.IdempotencyRepository,
	obligations service_interfaces.ObligationService,
	adapter fulfillment.Adapter,
	publisher service_interfaces.EventPublisher,
	interval time.Duration,
) *ReconciliationService {
	return &ReconciliationService{
		obligationRepo:  obligationRepo,
		idempotencyRepo: idempotencyRepo,
		obligations:     obligations,
		adapter:         adapter,
		publisher:       publisher,
		interval:        interval,
		nowFn:           time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *ReconciliationService) WithClock(nowFn func() time.Time) *ReconciliationService {
	s.nowFn = nowFn
	return s
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *ReconciliationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				logger.Error("reconciliation sweep failed", err, nil)
			}
		}
	}
}

// Sweep processes one batch of open authorizations. Per-row errors are logged
// and skipped so one stuck authorization cannot block the rest.
func (s *ReconciliationService) Sweep(ctx context.Context) error {
	open, err := s.obligationRepo.ListAuthorized(ctx, reconcileBatchSize)
	if err != nil {
		return err
	}

	for _, auth := range open {
		if err := s.reconcile(ctx, auth); err != nil {
			logger.Error("reconciliation of authorization failed", err, logger.Fields{
				"authorizationId": auth.ID,
				"intentId":        auth.EventID,
			})
		}
	}

	return nil
}

func (s *ReconciliationService) reconcile(ctx context.Context, auth domain.AnchorAuthorization) error {
	queryCtx, cancel := context.WithTimeout(ctx, reconcileCallTimeout)
	status, err := s.adapter.QueryStatus(queryCtx, auth.EventID)
	cancel()
	if err != nil {
		// Unreachable adapter is treated as UNKNOWN: the authorization may
		// still expire, but is never finalized on a guess.
		status = fulfillment.StatusResult{Status: fulfillment.StatusUnknown}
	}

	switch status.Status {
	case fulfillment.StatusFulfilled:
		fulfilled, err := s.obligations.Fulfill(ctx, auth.ID, status.Proof)
		if err != nil {
			return err
		}
		s.recordOutcome(ctx, auth.EventID, domain.ClearingResult{
			IntentID:        auth.EventID,
			AuthorizationID: auth.ID,
			Status:          domain.ClearingStatusFulfilled,
			Proof:           status.Proof,
		})
		s.publish(ctx, domain.EventAnchorFulfilled, fulfilled)
		logger.Info("reconciliation fulfilled authorization", logger.Fields{
			"authorizationId": auth.ID,
			"intentId":        auth.EventID,
		})
		return nil

	case fulfillment.StatusFailed:
		reason := status.Reason
		if reason == "" {
			reason = "issuer reported failure"
		}
		failed, err := s.obligations.Fail(ctx, auth.ID, reason)
		if err != nil {
			return err
		}
		s.recordOutcome(ctx, auth.EventID, domain.ClearingResult{
			IntentID:        auth.EventID,
			AuthorizationID: auth.ID,
			Status:          domain.ClearingStatusFailed,
			Message:         reason,
		})
		s.publish(ctx, domain.EventAnchorFailed, failed)
		logger.Info("reconciliation failed authorization", logger.Fields{
			"authorizationId": auth.ID,
			"intentId":        auth.EventID,
		})
		return nil

	default:
		if s.nowFn().UTC().Before(auth.ExpiresAt) {
			return nil
		}
		expired, err := s.obligations.Expire(ctx, auth.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotExpired) {
				return nil
			}
			return err
		}
		s.recordOutcome(ctx, auth.EventID, domain.ClearingResult{
			IntentID:        auth.EventID,
			AuthorizationID: auth.ID,
			Status:          domain.ClearingStatusFailed,
			Message:         "authorization expired",
		})
		s.publish(ctx, domain.EventAnchorExpired, expired)
		logger.Info("reconciliation expired authorization", logger.Fields{
			"authorizationId": auth.ID,
			"intentId":        auth.EventID,
		})
		return nil
	}
}

func (s *ReconciliationService) recordOutcome(ctx context.Context, intentID string, result domain.ClearingResult) {
	if err := s.idempotencyRepo.UpdateResult(ctx, intentID, result); err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		logger.Error("reconciliation idempotency result update failed", err, logger.Fields{
			"intentId": intentID,
		})
	}
}

func (s *ReconciliationService) publish(ctx context.Context, eventType string, auth domain.AnchorAuthorization) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, domain.AnchorEvent{
		Type:            eventType,
		EventID:         auth.EventID,
		AuthorizationID: auth.ID,
		AnchorType:      auth.AnchorType,
		Units:           auth.Units,
		Amount:          auth.Amount,
		Status:          string(auth.Status),
		OccurredAt:      time.Now().UTC(),
	}); err != nil {
		logger.Error("reconciliation event publish failed", err, logger.Fields{
			"eventType": eventType,
			"eventId":   auth.EventID,
		})
	}
}
