package repo_interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

// FinalizeUpdate carries the terminal-state fields recorded alongside a
// fulfill, expire or fail transition.
type FinalizeUpdate struct {
	ProofHash  *string
	FailReason *string
	At         time.Time
}

type ObligationRepository interface {
	// Authorize inserts the authorization, increments total_authorized and
	// posts the hold transfer, all in one transaction together with the audit
	// event. A duplicate event id fails the whole transaction.
	Authorize(ctx context.Context, auth domain.AnchorAuthorization, entry domain.JournalEntry, lines []domain.JournalLine, audit domain.AuditEvent) (domain.AnchorAuthorization, domain.AnchorObligation, error)
	// Finalize moves an AUTHORIZED row into the given terminal status,
	// increments the matching obligation counter and posts the closing or
	// reversing transfer, all in one transaction together with the audit
	// event. Returns ErrInvalidTransition when the row is already terminal.
	Finalize(ctx context.Context, authorizationID string, next domain.AuthorizationStatus, update FinalizeUpdate, entry domain.JournalEntry, lines []domain.JournalLine, audit domain.AuditEvent) (domain.AnchorAuthorization, domain.AnchorObligation, error)
	GetAuthorization(ctx context.Context, authorizationID string) (domain.AnchorAuthorization, error)
	GetAuthorizationByEventID(ctx context.Context, eventID string) (domain.AnchorAuthorization, error)
	GetObligation(ctx context.Context, anchorType string) (domain.AnchorObligation, error)
	Halt(ctx context.Context, anchorType string, reason string) error
	SumAuthorizedSince(ctx context.Context, anchorType string, since time.Time) (decimal.Decimal, error)
	ListAuthorized(ctx context.Context, limit int) ([]domain.AnchorAuthorization, error)
}
