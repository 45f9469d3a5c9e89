// Package audit captures the escrow lifecycle as an operator-facing trail:
// who asked for what, and whether the engine accepted it. It is separate from
// the domain event log, which is the aggregate's source of truth; the audit
// trail also records rejected attempts, which the event log never sees.
package audit

import "time"

// AuditAction names what happened.
type AuditAction string

const (
	ActionEscrowCreated AuditAction = "escrow_created"
	ActionApplied       AuditAction = "action_applied"
	ActionRejected      AuditAction = "action_rejected"
)

// Event is one audit trail entry. Keep it transport-agnostic so stores and
// sinks can fan out.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	Action    AuditAction `json:"action"`
	EscrowID  string      `json:"escrow_id"`
	// Requested is the lifecycle action the caller asked for, when any.
	Requested string `json:"requested,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Role      string `json:"role,omitempty"`
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state,omitempty"`
	// Reason carries the rejection reason for ActionRejected entries.
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
