package fulfillment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Status is the adapter's answer to "did this intent already happen?".
type Status string

const (
	StatusFulfilled Status = "FULFILLED"
	StatusFailed    Status = "FAILED"
	StatusUnknown   Status = "UNKNOWN"
)

// ErrDefinitiveFailure marks an adapter outcome that is safe to act on: the
// real-world action definitively did not and will not happen for this intent.
// Every other error is ambiguous and must be left to reconciliation.
var ErrDefinitiveFailure = errors.New("fulfillment adapter reported definitive failure")

type ExecuteRequest struct {
	IntentID   string          `json:"intentId"`
	AnchorType string          `json:"anchorType"`
	Units      int64           `json:"units"`
	Amount     decimal.Decimal `json:"amount"`
}

type StatusResult struct {
	Status Status `json:"status"`
	Proof  string `json:"proof,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Adapter is the pluggable boundary to a real-world value issuer.
//
// Implementations must be idempotent on the intent id: calling Execute twice
// with the same intent id must not issue two real-world values, and
// QueryStatus must answer for intents Execute has seen before.
type Adapter interface {
	Execute(ctx context.Context, req ExecuteRequest) (proof string, err error)
	QueryStatus(ctx context.Context, intentID string) (StatusResult, error)
}
