package domain

import "time"

type AuditOutcome string

const (
	AuditSuccess AuditOutcome = "success"
	AuditFailure AuditOutcome = "failure"
)

// Audit actions written by mutating operations.
const (
	AuditOrderCreate   = "order.create"
	AuditOrderStatus   = "order.update_status"
	AuditOrderCancel   = "order.cancel"
	AuditPaymentCash   = "payment.cash"
	AuditPaymentMobile = "payment.mobile_money"
	AuditPaymentVerify = "payment.verify"
	AuditQueueReap     = "queue.reap"
)

// AuditRecord is an append-only log entry; nothing in the service reads it back.
type AuditRecord struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Action    string         `json:"action"`
	ActorID   string         `json:"actorId"`
	Outcome   AuditOutcome   `json:"outcome"`
	Context   map[string]any `json:"context"`
	CreatedAt time.Time      `json:"createdAt"`
}
