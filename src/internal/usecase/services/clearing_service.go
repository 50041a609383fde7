package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/fulfillment"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/http/models"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/commons"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
)

// ClearingService orchestrates authorize → fulfill-or-fail → mirror for one
// intent, wrapped by the idempotency guard. It is the only caller of the
// fulfillment adapter on the request path; ambiguous adapter outcomes leave
// the authorization AUTHORIZED for the reconciliation sweep.
type ClearingService struct {
	guard          *IdempotencyGuard
	obligations    service_interfaces.ObligationService
	adapter        fulfillment.Adapter
	publisher      service_interfaces.EventPublisher
	auditRepo      repo_interfaces.AuditRepository
	adapterTimeout time.Duration
	mirrorNudge    func()
}

var _ service_interfaces.ClearingService = (*ClearingService)(nil)

func NewClearingService(
	guard *IdempotencyGuard,
	obligations service_interfaces.ObligationService,
	adapter fulfillment.Adapter,
	publisher service_interfaces.EventPublisher,
	auditRepo repo_interfaces.AuditRepository,
	adapterTimeout time.Duration,
	mirrorNudge func(),
) *ClearingService {
	if mirrorNudge == nil {
		mirrorNudge = func() {}
	}

	return &ClearingService{
		guard:          guard,
		obligations:    obligations,
		adapter:        adapter,
		publisher:      publisher,
		auditRepo:      auditRepo,
		adapterTimeout: adapterTimeout,
		mirrorNudge:    mirrorNudge,
	}
}

func (s *ClearingService) ClearObligation(ctx context.Context, req models.ClearObligationRequest) (commons.Response[models.ClearObligationResponse], error) {
	logger.Info("clearing service clear obligation request", logger.Fields{
		"intentId":   req.IntentID,
		"anchorType": req.AnchorType,
	})

	if err := req.Validate(); err != nil {
		return commons.ErrorResponse[models.ClearObligationResponse]("validation failed", err.Error()), err
	}

	intentID := strings.TrimSpace(req.IntentID)
	payloadHash := HashIntent(strings.TrimSpace(req.UserID), strings.ToUpper(strings.TrimSpace(req.AnchorType)), req.Units, req.Amount.String())

	result, err := s.guard.Do(ctx, intentID, payloadHash, func(fnCtx context.Context) (domain.ClearingResult, bool, error) {
		return s.clearOnce(fnCtx, intentID, req)
	})
	if err != nil {
		return s.errorResponse(err), err
	}

	s.mirrorNudge()

	response := models.ClearObligationResponse{
		IntentID:        result.IntentID,
		AuthorizationID: result.AuthorizationID,
		Status:          string(result.Status),
		Proof:           result.Proof,
		Message:         result.Message,
	}

	if result.Status == domain.ClearingStatusPending {
		return commons.PendingResponse("Clearing pending reconciliation", response), nil
	}
	if result.Status == domain.ClearingStatusFailed {
		return commons.SuccessResponse("Clearing failed; reserved funds released", response), nil
	}
	return commons.SuccessResponse("Clearing fulfilled", response), nil
}

// clearOnce runs exactly once per intent id. Once the authorization exists
// the returned result is durable, whatever the adapter outcome was.
func (s *ClearingService) clearOnce(ctx context.Context, intentID string, req models.ClearObligationRequest) (domain.ClearingResult, bool, error) {
	auth, err := s.obligations.Authorize(ctx, service_interfaces.AuthorizeCommand{
		IntentID:    intentID,
		UserAddress: strings.TrimSpace(req.UserID),
		AnchorType:  req.AnchorType,
		Units:       req.Units,
		Amount:      req.Amount,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			// Another process authorized this intent between our lookup and
			// the insert; surface its state rather than failing the caller.
			return s.recoverExisting(ctx, intentID)
		}
		return domain.ClearingResult{}, false, err
	}

	s.publish(ctx, domain.EventAnchorAuthorizationCreated, auth)

	adapterCtx, cancel := context.WithTimeout(ctx, s.adapterTimeout)
	proof, execErr := s.adapter.Execute(adapterCtx, fulfillment.ExecuteRequest{
		IntentID:   intentID,
		AnchorType: auth.AnchorType,
		Units:      auth.Units,
		Amount:     auth.Amount,
	})
	cancel()

	switch {
	case execErr == nil:
		fulfilled, err := s.obligations.Fulfill(ctx, auth.ID, proof)
		if err != nil {
			// The issuer acted but our finalize did not commit; leave the
			// authorization for reconciliation instead of guessing.
			logger.Error("clearing service fulfill after adapter success failed", err, logger.Fields{
				"intentId":        intentID,
				"authorizationId": auth.ID,
			})
			return s.pendingResult(ctx, auth, "fulfillment recorded by issuer; finalization pending"), true, nil
		}
		s.publish(ctx, domain.EventAnchorFulfilled, fulfilled)
		return domain.ClearingResult{
			IntentID:        intentID,
			AuthorizationID: fulfilled.ID,
			Status:          domain.ClearingStatusFulfilled,
			Proof:           proof,
		}, true, nil

	case errors.Is(execErr, fulfillment.ErrDefinitiveFailure):
		failed, err := s.obligations.Fail(ctx, auth.ID, execErr.Error())
		if err != nil {
			logger.Error("clearing service fail transition failed", err, logger.Fields{
				"intentId":        intentID,
				"authorizationId": auth.ID,
			})
			return s.pendingResult(ctx, auth, "definitive adapter failure; release pending"), true, nil
		}
		s.publish(ctx, domain.EventAnchorFailed, failed)
		return domain.ClearingResult{
			IntentID:        intentID,
			AuthorizationID: failed.ID,
			Status:          domain.ClearingStatusFailed,
			Message:         execErr.Error(),
		}, true, nil

	default:
		// Timeout or ambiguous transport failure: the issuer may have acted.
		// Funds stay held and reconciliation decides via QueryStatus.
		if errors.Is(execErr, context.DeadlineExceeded) {
			execErr = fmt.Errorf("%w: %v", domain.ErrAdapterTimeout, execErr)
		}
		logger.Error("clearing service adapter outcome ambiguous", execErr, logger.Fields{
			"intentId":        intentID,
			"authorizationId": auth.ID,
		})
		return s.pendingResult(ctx, auth, "adapter outcome ambiguous; awaiting reconciliation"), true, nil
	}
}

func (s *ClearingService) pendingResult(ctx context.Context, auth domain.AnchorAuthorization, detail string) domain.ClearingResult {
	if err := s.auditRepo.Append(ctx, domain.AuditEvent{
		ID:            uuid.NewString(),
		CorrelationID: auth.EventID,
		Actor:         actorEngine,
		Action:        "DEFER",
		EntityType:    entityAuthorization,
		EntityID:      auth.ID,
		BeforeStatus:  string(domain.AuthorizationStatusAuthorized),
		AfterStatus:   string(domain.AuthorizationStatusAuthorized),
		Detail:        detail,
	}); err != nil {
		logger.Error("clearing service audit append failed", err, logger.Fields{
			"intentId": auth.EventID,
		})
	}

	return domain.ClearingResult{
		IntentID:        auth.EventID,
		AuthorizationID: auth.ID,
		Status:          domain.ClearingStatusPending,
		Message:         detail,
	}
}

func (s *ClearingService) recoverExisting(ctx context.Context, intentID string) (domain.ClearingResult, bool, error) {
	auth, err := s.obligations.AuthorizationByEventID(ctx, intentID)
	if err != nil {
		return domain.ClearingResult{}, false, err
	}

	result := domain.ClearingResult{
		IntentID:        intentID,
		AuthorizationID: auth.ID,
	}
	switch auth.Status {
	case domain.AuthorizationStatusFulfilled:
		result.Status = domain.ClearingStatusFulfilled
	case domain.AuthorizationStatusFailed:
		result.Status = domain.ClearingStatusFailed
		if auth.FailReason != nil {
			result.Message = *auth.FailReason
		}
	case domain.AuthorizationStatusExpired:
		result.Status = domain.ClearingStatusFailed
		result.Message = "authorization expired"
	default:
		result.Status = domain.ClearingStatusPending
		result.Message = "awaiting reconciliation"
	}

	return result, true, nil
}

func (s *ClearingService) publish(ctx context.Context, eventType string, auth domain.AnchorAuthorization) {
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
		logger.Error("clearing service event publish failed", err, logger.Fields{
			"eventType": eventType,
			"eventId":   auth.EventID,
		})
	}
}

func (s *ClearingService) errorResponse(err error) commons.Response[models.ClearObligationResponse] {
	switch {
	case errors.Is(err, domain.ErrIdempotencyConflict):
		return commons.ErrorResponse[models.ClearObligationResponse]("Intent conflict", err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		return commons.ErrorResponse[models.ClearObligationResponse]("Insufficient balance", err.Error())
	case errors.Is(err, domain.ErrAnchorInactive), errors.Is(err, domain.ErrAnchorHalted):
		return commons.ErrorResponse[models.ClearObligationResponse]("Anchor unavailable", err.Error())
	case errors.Is(err, domain.ErrDailyCapExceeded):
		return commons.ErrorResponse[models.ClearObligationResponse]("Daily cap exceeded", err.Error())
	case errors.Is(err, domain.ErrRecordNotFound):
		return commons.ErrorResponse[models.ClearObligationResponse]("Account not found", err.Error())
	default:
		return commons.ErrorResponse[models.ClearObligationResponse]("failed to clear obligation", "Unable to clear obligation right now")
	}
}
