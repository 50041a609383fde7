package domain

import "time"

const (
	AuditActionAuthorize = "AUTHORIZE"
	AuditActionFulfill   = "FULFILL"
	AuditActionExpire    = "EXPIRE"
	AuditActionFail      = "FAIL"
	AuditActionHalt      = "HALT"
)

// AuditEvent is an append-only record of one state transition. Rows are never
// updated or deleted.
type AuditEvent struct {
	ID            string
	CorrelationID string
	Actor         string
	Action        string
	EntityType    string
	EntityID      string
	BeforeStatus  string
	AfterStatus   string
	Detail        string
	CreatedAt     time.Time
}
