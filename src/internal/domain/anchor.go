package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuthorizationStatus string

const (
	AuthorizationStatusAuthorized AuthorizationStatus = "AUTHORIZED"
	AuthorizationStatusFulfilled  AuthorizationStatus = "FULFILLED"
	AuthorizationStatusExpired    AuthorizationStatus = "EXPIRED"
	AuthorizationStatusFailed     AuthorizationStatus = "FAILED"
)

func (s AuthorizationStatus) Terminal() bool {
	return s == AuthorizationStatusFulfilled ||
		s == AuthorizationStatusExpired ||
		s == AuthorizationStatusFailed
}

type AnchorAuthorization struct {
	ID           string
	EventID      string
	UserAddress  string
	AnchorType   string
	Units        int64
	Amount       decimal.Decimal
	Status       AuthorizationStatus
	Attestation  string
	ProofHash    *string
	FailReason   *string
	AuthorizedAt time.Time
	ExpiresAt    time.Time
	FulfilledAt  *time.Time
	ExpiredAt    *time.Time
	FailedAt     *time.Time
}

type AnchorObligation struct {
	AnchorType      string
	TotalAuthorized decimal.Decimal
	TotalFulfilled  decimal.Decimal
	TotalExpired    decimal.Decimal
	Halted          bool
	HaltReason      *string
	UpdatedAt       time.Time
}

// Consistent reports whether the monotonic counters still satisfy
// total_fulfilled + total_expired <= total_authorized.
func (o AnchorObligation) Consistent() bool {
	return o.TotalFulfilled.Add(o.TotalExpired).LessThanOrEqual(o.TotalAuthorized)
}
