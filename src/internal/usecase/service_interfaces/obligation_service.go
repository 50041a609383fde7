package service_interfaces

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sovr-labs/anchor-clearing-engine/src/internal/domain"
)

type AuthorizeCommand struct {
	IntentID    string
	UserAddress string
	AnchorType  string
	Units       int64
	Amount      decimal.Decimal
}

type ObligationService interface {
	// Authorize creates the AUTHORIZED row, bumps total_authorized and holds
	// the user's funds against the anchor's obligation account, atomically.
	Authorize(ctx context.Context, cmd AuthorizeCommand) (domain.AnchorAuthorization, error)
	// Fulfill finalizes an authorization with the issuer's proof. Calling it
	// again for an already fulfilled authorization is a no-op returning the
	// original row.
	Fulfill(ctx context.Context, authorizationID string, proof string) (domain.AnchorAuthorization, error)
	// Expire releases held funds back to the user once the expiry window has
	// passed without fulfillment.
	Expire(ctx context.Context, authorizationID string) (domain.AnchorAuthorization, error)
	// Fail releases held funds after the adapter reported definitive failure.
	Fail(ctx context.Context, authorizationID string, reason string) (domain.AnchorAuthorization, error)
	AuthorizationByEventID(ctx context.Context, eventID string) (domain.AnchorAuthorization, error)
	Obligation(ctx context.Context, anchorType string) (domain.AnchorObligation, error)
}
