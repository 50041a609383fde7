package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/adapter/repository/repo_interfaces"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/config"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/logger"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/usecase/service_interfaces"
)

const (
	userEntityPrefix   = "user:"
	anchorEntityPrefix = "anchor:"
	settlementEntity   = "system:settlement"

	actorEngine = "clearing-engine"

	entityAuthorization = "AnchorAuthorization"
)

// ObligationService owns the AUTHORIZED → {FULFILLED, EXPIRED, FAILED} state
// machine. Every transition commits its counter update, its ledger transfer
// and its audit event in one repository transaction.
type ObligationService struct {
	obligationRepo repo_interfaces.ObligationRepository
	ledger         service_interfaces.LedgerService
	policies       map[string]config.AnchorPolicy
	signingKey     []byte
	nowFn          func() time.Time
}

var _ service_interfaces.ObligationService = (*ObligationService)(nil)

func NewObligationService(
	obligationRepo repo_interfaces.ObligationRepository,
	ledger service_interfaces.LedgerService,
	policies map[string]config.AnchorPolicy,
	signingKey string,
) *ObligationService {
	return &ObligationService{
		obligationRepo: obligationRepo,
		ledger:         ledger,
		policies:       policies,
		signingKey:     []byte(signingKey),
		nowFn:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock; tests use it to cross expiry windows.
func (s *ObligationService) WithClock(nowFn func() time.Time) *ObligationService {
	s.nowFn = nowFn
	return s
}

func (s *ObligationService) Authorize(ctx context.Context, cmd service_interfaces.AuthorizeCommand) (domain.AnchorAuthorization, error) {
	anchorType := strings.ToUpper(strings.TrimSpace(cmd.AnchorType))

	policy, ok := s.policies[anchorType]
	if !ok || !policy.Active {
		return domain.AnchorAuthorization{}, domain.ErrAnchorInactive
	}

	obligation, err := s.obligationRepo.GetObligation(ctx, anchorType)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return domain.AnchorAuthorization{}, err
	}
	if err == nil && obligation.Halted {
		return domain.AnchorAuthorization{}, domain.ErrAnchorHalted
	}

	now := s.nowFn()
	if policy.DailyCap.IsPositive() {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		issued, err := s.obligationRepo.SumAuthorizedSince(ctx, anchorType, dayStart)
		if err != nil {
			return domain.AnchorAuthorization{}, err
		}
		if issued.Add(cmd.Amount).GreaterThan(policy.DailyCap) {
			return domain.AnchorAuthorization{}, domain.ErrDailyCapExceeded
		}
	}

	userAccount, err := s.ledger.AccountByEntity(ctx, userEntityPrefix+cmd.UserAddress)
	if err != nil {
		return domain.AnchorAuthorization{}, fmt.Errorf("resolve user account: %w", err)
	}
	if !userAccount.IsActive {
		return domain.AnchorAuthorization{}, fmt.Errorf("resolve user account: account is not active")
	}

	anchorAccount, err := s.ledger.AccountByEntity(ctx, anchorEntityPrefix+anchorType)
	if err != nil {
		return domain.AnchorAuthorization{}, fmt.Errorf("resolve anchor obligation account: %w", err)
	}

	// Courtesy pre-check; the transaction's non-negative constraint is the
	// authoritative one under concurrency.
	available, err := s.ledger.AvailableBalance(ctx, userAccount.ID)
	if err != nil {
		return domain.AnchorAuthorization{}, err
	}
	if available.LessThan(cmd.Amount) {
		return domain.AnchorAuthorization{}, domain.ErrInsufficientBalance
	}

	auth := domain.AnchorAuthorization{
		ID:           uuid.NewString(),
		EventID:      cmd.IntentID,
		UserAddress:  cmd.UserAddress,
		AnchorType:   anchorType,
		Units:        cmd.Units,
		Amount:       cmd.Amount,
		Status:       domain.AuthorizationStatusAuthorized,
		Attestation:  Attest(s.signingKey, cmd.IntentID, anchorType, cmd.Amount),
		AuthorizedAt: now,
		ExpiresAt:    now.Add(policy.ExpiryWindow()),
	}

	entry, lines, err := s.ledger.PrepareTransfer(
		"anchor authorization hold",
		domain.EntrySourceAnchor,
		&auth.ID,
		[]service_interfaces.Movement{
			{AccountID: userAccount.ID, Direction: domain.LineDebit, Amount: cmd.Amount},
			{AccountID: anchorAccount.ID, Direction: domain.LineCredit, Amount: cmd.Amount},
		},
	)
	if err != nil {
		return domain.AnchorAuthorization{}, err
	}

	created, obligation, err := s.obligationRepo.Authorize(ctx, auth, entry, lines, s.auditEvent(
		auth.EventID,
		domain.AuditActionAuthorize,
		auth.ID,
		"",
		string(domain.AuthorizationStatusAuthorized),
		fmt.Sprintf("anchor=%s units=%d", anchorType, cmd.Units),
	))
	if err != nil {
		if errors.Is(err, domain.ErrNegativeBalance) {
			return domain.AnchorAuthorization{}, domain.ErrInsufficientBalance
		}
		return domain.AnchorAuthorization{}, err
	}

	if err := s.verifyConsistency(ctx, obligation); err != nil {
		return domain.AnchorAuthorization{}, err
	}

	logger.Info("obligation service authorization created", logger.Fields{
		"authorizationId": created.ID,
		"eventId":         created.EventID,
		"anchorType":      anchorType,
		"expiresAt":       created.ExpiresAt,
	})

	return created, nil
}

func (s *ObligationService) Fulfill(ctx context.Context, authorizationID string, proof string) (domain.AnchorAuthorization, error) {
	auth, err := s.obligationRepo.GetAuthorization(ctx, authorizationID)
	if err != nil {
		return domain.AnchorAuthorization{}, err
	}
	if auth.Status == domain.AuthorizationStatusFulfilled {
		return auth, nil
	}
	if auth.Status != domain.AuthorizationStatusAuthorized {
		return domain.AnchorAuthorization{}, domain.ErrInvalidTransition
	}

	proofHash := ProofHash(proof)
	finalized, err := s.finalize(ctx, auth, domain.AuthorizationStatusFulfilled, repo_interfaces.FinalizeUpdate{
		ProofHash: &proofHash,
		At:        s.nowFn(),
	}, "anchor fulfillment settlement", domain.AuditActionFulfill, "proof recorded")
	if errors.Is(err, domain.ErrInvalidTransition) {
		// Lost a race with another fulfill; return what won.
		current, getErr := s.obligationRepo.GetAuthorization(ctx, authorizationID)
		if getErr == nil && current.Status == domain.AuthorizationStatusFulfilled {
			return current, nil
		}
		return domain.AnchorAuthorization{}, err
	}
	return finalized, err
}

func (s *ObligationService) Expire(ctx context.Context, authorizationID string) (domain.AnchorAuthorization, error) {
	auth, err := s.obligationRepo.GetAuthorization(ctx, authorizationID)
	if err != nil {
		return domain.AnchorAuthorization{}, err
	}
	if auth.Status == domain.AuthorizationStatusExpired {
		return auth, nil
	}
	if auth.Status != domain.AuthorizationStatusAuthorized {
		return domain.AnchorAuthorization{}, domain.ErrInvalidTransition
	}
	if s.nowFn().Before(auth.ExpiresAt) {
		return domain.AnchorAuthorization{}, domain.ErrNotExpired
	}

	return s.finalize(ctx, auth, domain.AuthorizationStatusExpired, repo_interfaces.FinalizeUpdate{
		At: s.nowFn(),
	}, "anchor authorization expiry release", domain.AuditActionExpire, "expiry window passed")
}

func (s *ObligationService) Fail(ctx context.Context, authorizationID string, reason string) (domain.AnchorAuthorization, error) {
	auth, err := s.obligationRepo.GetAuthorization(ctx, authorizationID)
	if err != nil {
		return domain.AnchorAuthorization{}, err
	}
	if auth.Status == domain.AuthorizationStatusFailed {
		return auth, nil
	}
	if auth.Status != domain.AuthorizationStatusAuthorized {
		return domain.AnchorAuthorization{}, domain.ErrInvalidTransition
	}

	return s.finalize(ctx, auth, domain.AuthorizationStatusFailed, repo_interfaces.FinalizeUpdate{
		FailReason: &reason,
		At:         s.nowFn(),
	}, "anchor authorization failure release", domain.AuditActionFail, reason)
}

// finalize posts the closing transfer for a fulfillment or the reversing
// transfer for an expiry or failure, together with the counter update and
// audit event.
func (s *ObligationService) finalize(
	ctx context.Context,
	auth domain.AnchorAuthorization,
	next domain.AuthorizationStatus,
	update repo_interfaces.FinalizeUpdate,
	description string,
	auditAction string,
	auditDetail string,
) (domain.AnchorAuthorization, error) {
	anchorAccount, err := s.ledger.AccountByEntity(ctx, anchorEntityPrefix+auth.AnchorType)
	if err != nil {
		return domain.AnchorAuthorization{}, fmt.Errorf("resolve anchor obligation account: %w", err)
	}

	var creditAccountID int64
	if next == domain.AuthorizationStatusFulfilled {
		settlement, err := s.ledger.AccountByEntity(ctx, settlementEntity)
		if err != nil {
			return domain.AnchorAuthorization{}, fmt.Errorf("resolve settlement account: %w", err)
		}
		creditAccountID = settlement.ID
	} else {
		userAccount, err := s.ledger.AccountByEntity(ctx, userEntityPrefix+auth.UserAddress)
		if err != nil {
			return domain.AnchorAuthorization{}, fmt.Errorf("resolve user account: %w", err)
		}
		creditAccountID = userAccount.ID
	}

	entry, lines, err := s.ledger.PrepareTransfer(
		description,
		domain.EntrySourceAnchor,
		&auth.ID,
		[]service_interfaces.Movement{
			{AccountID: anchorAccount.ID, Direction: domain.LineDebit, Amount: auth.Amount},
			{AccountID: creditAccountID, Direction: domain.LineCredit, Amount: auth.Amount},
		},
	)
	if err != nil {
		return domain.AnchorAuthorization{}, err
	}

	finalized, obligation, err := s.obligationRepo.Finalize(ctx, auth.ID, next, update, entry, lines, s.auditEvent(
		auth.EventID,
		auditAction,
		auth.ID,
		string(domain.AuthorizationStatusAuthorized),
		string(next),
		auditDetail,
	))
	if err != nil {
		if errors.Is(err, domain.ErrInternalConsistency) {
			s.haltAnchor(ctx, auth.AnchorType, err)
		}
		return domain.AnchorAuthorization{}, err
	}

	if err := s.verifyConsistency(ctx, obligation); err != nil {
		return domain.AnchorAuthorization{}, err
	}

	logger.Info("obligation service authorization finalized", logger.Fields{
		"authorizationId": finalized.ID,
		"eventId":         finalized.EventID,
		"status":          finalized.Status,
	})

	return finalized, nil
}

// verifyConsistency is the last line of defense behind the storage CHECK
// constraint. A violation is never patched: the anchor stops issuing.
func (s *ObligationService) verifyConsistency(ctx context.Context, obligation domain.AnchorObligation) error {
	if obligation.Consistent() {
		return nil
	}

	s.haltAnchor(ctx, obligation.AnchorType, domain.ErrInternalConsistency)
	return domain.ErrInternalConsistency
}

func (s *ObligationService) haltAnchor(ctx context.Context, anchorType string, cause error) {
	logger.Error("obligation service halting anchor", cause, logger.Fields{
		"anchorType": anchorType,
	})

	if err := s.obligationRepo.Halt(ctx, anchorType, cause.Error()); err != nil {
		logger.Error("obligation service halt anchor failed", err, logger.Fields{
			"anchorType": anchorType,
		})
	}
}

func (s *ObligationService) AuthorizationByEventID(ctx context.Context, eventID string) (domain.AnchorAuthorization, error) {
	return s.obligationRepo.GetAuthorizationByEventID(ctx, eventID)
}

func (s *ObligationService) Obligation(ctx context.Context, anchorType string) (domain.AnchorObligation, error) {
	return s.obligationRepo.GetObligation(ctx, strings.ToUpper(strings.TrimSpace(anchorType)))
}

func (s *ObligationService) auditEvent(correlationID, action, entityID, before, after, detail string) domain.AuditEvent {
	return domain.AuditEvent{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		Actor:         actorEngine,
		Action:        action,
		EntityType:    entityAuthorization,
		EntityID:      entityID,
		BeforeStatus:  before,
		AfterStatus:   after,
		Detail:        detail,
	}
}
