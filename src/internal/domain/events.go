package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventAnchorAuthorizationCreated = "AnchorAuthorizationCreated"
	EventAnchorFulfilled            = "AnchorFulfilled"
	EventAnchorExpired              = "AnchorExpired"
	EventAnchorFailed               = "AnchorFailed"
)

// AnchorEvent is the externally published record of one authorization
// transition, keyed by the intent's event id for correlation.
type AnchorEvent struct {
	Type            string          `json:"type"`
	EventID         string          `json:"eventId"`
	AuthorizationID string          `json:"authorizationId"`
	AnchorType      string          `json:"anchorType"`
	Units           int64           `json:"units"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	OccurredAt      time.Time       `json:"occurredAt"`
}
