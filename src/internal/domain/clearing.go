package domain

import "time"

type ClearingStatus string

const (
	ClearingStatusAuthorized ClearingStatus = "authorized"
	ClearingStatusFulfilled  ClearingStatus = "fulfilled"
	ClearingStatusFailed     ClearingStatus = "failed"
	ClearingStatusPending    ClearingStatus = "pending"
)

// ClearingResult is the idempotent outcome of one clearing intent. Once an
// authorization exists for an intent id the result is recorded and replayed
// on every retry; it is never recomputed.
type ClearingResult struct {
	IntentID        string         `json:"intentId"`
	AuthorizationID string         `json:"authorizationId"`
	Status          ClearingStatus `json:"status"`
	Proof           string         `json:"proof,omitempty"`
	Message         string         `json:"message,omitempty"`
}

type IdempotencyRecord struct {
	IntentID    string
	PayloadHash string
	Result      ClearingResult
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
