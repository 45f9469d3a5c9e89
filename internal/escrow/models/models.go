package models

import (
	"time"

	id "escrowd/pkg/domain"
	dErrors "escrowd/pkg/domain-errors"
)

// State is the lifecycle position of an escrow.
type State string

const (
	StateProposed State = "PROPOSED"
	StateFunded   State = "FUNDED"
	StateReleased State = "RELEASED"
	StateDisputed State = "DISPUTED"
	StateRefunded State = "REFUNDED"
)

// ParseState validates and returns a State.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateProposed, StateFunded, StateReleased, StateDisputed, StateRefunded:
		return State(s), nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "unknown state: "+s)
}

func (s State) String() string {
	return string(s)
}

// IsTerminal reports whether no further actions are legal from this state.
func (s State) IsTerminal() bool {
	return s == StateReleased || s == StateRefunded
}

// Action is a lifecycle operation requested by a participant.
type Action string

const (
	ActionFund                  Action = "FUND"
	ActionRelease               Action = "RELEASE"
	ActionDispute               Action = "DISPUTE"
	ActionResolveDisputeRelease Action = "RESOLVE_DISPUTE_RELEASE"
	ActionResolveDisputeRefund  Action = "RESOLVE_DISPUTE_REFUND"
	// ActionRefund is reserved. No role may invoke a bare refund outside
	// dispute resolution; it exists so the permission table documents that.
	ActionRefund Action = "REFUND"
)

// ParseAction validates and returns an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionFund, ActionRelease, ActionDispute,
		ActionResolveDisputeRelease, ActionResolveDisputeRefund, ActionRefund:
		return Action(s), nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "unknown action: "+s)
}

func (a Action) String() string {
	return string(a)
}

// Role identifies which side of the escrow the caller acts as.
type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole validates and returns a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return Role(s), nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "unknown role: "+s)
}

func (r Role) String() string {
	return string(r)
}

// Escrow is the aggregate root for a two-party financial hold.
//
// Invariants:
//   - BuyerID, SellerID, Amount, and Description never change after creation
//   - CurrentState moves only along the engine's transition table
//   - CreatedAt equals the timestamp of the Created event; UpdatedAt equals
//     the timestamp of the latest event in the history
//
// Every mutation produces a new value via WithState; the old value is never
// changed in place. This keeps snapshots consistent with the event log and
// makes apply a pure computation.
type Escrow struct {
	ID           id.EscrowID `json:"id"`
	BuyerID      id.PartyID  `json:"buyer_id"`
	SellerID     id.PartyID  `json:"seller_id"`
	Amount       int64       `json:"amount"`
	Description  string      `json:"description"`
	CurrentState State       `json:"current_state"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// WithState returns a copy of the escrow moved to the given state at the
// given time. The receiver is left untouched.
func (e *Escrow) WithState(next State, at time.Time) *Escrow {
	clone := *e
	clone.CurrentState = next
	clone.UpdatedAt = at
	return &clone
}

// Clone returns an independent copy so stored snapshots cannot be mutated
// through values handed to callers.
func (e *Escrow) Clone() *Escrow {
	clone := *e
	return &clone
}
