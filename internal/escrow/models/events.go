package models

import (
	"encoding/json"
	"time"

	id "escrowd/pkg/domain"
	dErrors "escrowd/pkg/domain-errors"
)

// Event is the closed sum of facts recorded in an escrow's history. The two
// variants are Created and StateChanged; the unexported marker keeps the set
// closed so replay can switch exhaustively.
type Event interface {
	// OccurredAt is the event timestamp.
	OccurredAt() time.Time
	// Escrow is the aggregate the event belongs to.
	Escrow() id.EscrowID

	isEvent()
}

// Created records the birth of an escrow. It is always the first entry of a
// history and carries every immutable attribute of the aggregate.
type Created struct {
	ID          id.EventID  `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	EscrowID    id.EscrowID `json:"escrow_id"`
	BuyerID     id.PartyID  `json:"buyer_id"`
	SellerID    id.PartyID  `json:"seller_id"`
	Amount      int64       `json:"amount"`
	Description string      `json:"description"`
}

func (e Created) OccurredAt() time.Time { return e.Timestamp }
func (e Created) Escrow() id.EscrowID   { return e.EscrowID }
func (e Created) isEvent()              {}

// StateChanged records one accepted transition.
type StateChanged struct {
	ID          id.EventID  `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	EscrowID    id.EscrowID `json:"escrow_id"`
	Action      Action      `json:"action"`
	From        State       `json:"from_state"`
	To          State       `json:"to_state"`
	PerformedBy id.PartyID  `json:"performed_by"`
	Role        Role        `json:"role"`
	Reason      string      `json:"reason,omitempty"`
}

func (e StateChanged) OccurredAt() time.Time { return e.Timestamp }
func (e StateChanged) Escrow() id.EscrowID   { return e.EscrowID }
func (e StateChanged) isEvent()              {}

// History is the ordered event sequence for one escrow: exactly one Created
// first, then zero or more StateChanged in acceptance order.
type History []Event

// Clone returns an independent copy of the history. Events themselves are
// immutable values, so a shallow copy of the slice is enough.
func (h History) Clone() History {
	if h == nil {
		return nil
	}
	out := make(History, len(h))
	copy(out, h)
	return out
}

// Replay derives the current aggregate from its history. The Created event
// seeds identity and attributes, then every StateChanged is folded in order;
// later events always win since the log guarantees a single linear history
// per id. Returns an invariant violation error when the history is empty or
// does not begin with Created.
func Replay(events History) (*Escrow, error) {
	if len(events) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot replay an empty history")
	}
	created, ok := events[0].(Created)
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "history must begin with a created event")
	}

	escrow := &Escrow{
		ID:           created.EscrowID,
		BuyerID:      created.BuyerID,
		SellerID:     created.SellerID,
		Amount:       created.Amount,
		Description:  created.Description,
		CurrentState: StateProposed,
		CreatedAt:    created.Timestamp,
		UpdatedAt:    created.Timestamp,
	}
	for _, ev := range events[1:] {
		switch e := ev.(type) {
		case Created:
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "history contains more than one created event")
		case StateChanged:
			escrow.CurrentState = e.To
			escrow.UpdatedAt = e.Timestamp
		}
	}
	return escrow, nil
}

// Event type discriminators used at the serialization boundary. Inside the
// process events are a closed sum type; the tag exists only in JSON.
const (
	eventTypeCreated      = "created"
	eventTypeStateChanged = "state_changed"
)

// eventEnvelope is the wire shape of a single event: the union of both
// variants' fields plus a type tag.
type eventEnvelope struct {
	Type        string      `json:"type"`
	ID          id.EventID  `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	EscrowID    id.EscrowID `json:"escrow_id"`
	BuyerID     id.PartyID  `json:"buyer_id,omitempty"`
	SellerID    id.PartyID  `json:"seller_id,omitempty"`
	Amount      int64       `json:"amount,omitempty"`
	Description string      `json:"description,omitempty"`
	Action      Action      `json:"action,omitempty"`
	From        State       `json:"from_state,omitempty"`
	To          State       `json:"to_state,omitempty"`
	PerformedBy id.PartyID  `json:"performed_by,omitempty"`
	Role        Role        `json:"role,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

// MarshalEvent serializes a single event with its type tag.
func MarshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(toEnvelope(ev))
}

// UnmarshalEvent deserializes a single tagged event.
func UnmarshalEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return fromEnvelope(env)
}

// MarshalJSON serializes the history as an array of tagged envelopes.
func (h History) MarshalJSON() ([]byte, error) {
	envs := make([]eventEnvelope, len(h))
	for i, ev := range h {
		envs[i] = toEnvelope(ev)
	}
	return json.Marshal(envs)
}

// UnmarshalJSON restores the concrete event variants from tagged envelopes.
func (h *History) UnmarshalJSON(data []byte) error {
	var envs []eventEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}
	out := make(History, 0, len(envs))
	for _, env := range envs {
		ev, err := fromEnvelope(env)
		if err != nil {
			return err
		}
		out = append(out, ev)
	}
	*h = out
	return nil
}

func toEnvelope(ev Event) eventEnvelope {
	switch e := ev.(type) {
	case Created:
		return eventEnvelope{
			Type:        eventTypeCreated,
			ID:          e.ID,
			Timestamp:   e.Timestamp,
			EscrowID:    e.EscrowID,
			BuyerID:     e.BuyerID,
			SellerID:    e.SellerID,
			Amount:      e.Amount,
			Description: e.Description,
		}
	case StateChanged:
		return eventEnvelope{
			Type:        eventTypeStateChanged,
			ID:          e.ID,
			Timestamp:   e.Timestamp,
			EscrowID:    e.EscrowID,
			Action:      e.Action,
			From:        e.From,
			To:          e.To,
			PerformedBy: e.PerformedBy,
			Role:        e.Role,
			Reason:      e.Reason,
		}
	}
	// Unreachable: Event is a closed sum.
	return eventEnvelope{}
}

func fromEnvelope(env eventEnvelope) (Event, error) {
	switch env.Type {
	case eventTypeCreated:
		return Created{
			ID:          env.ID,
			Timestamp:   env.Timestamp,
			EscrowID:    env.EscrowID,
			BuyerID:     env.BuyerID,
			SellerID:    env.SellerID,
			Amount:      env.Amount,
			Description: env.Description,
		}, nil
	case eventTypeStateChanged:
		return StateChanged{
			ID:          env.ID,
			Timestamp:   env.Timestamp,
			EscrowID:    env.EscrowID,
			Action:      env.Action,
			From:        env.From,
			To:          env.To,
			PerformedBy: env.PerformedBy,
			Role:        env.Role,
			Reason:      env.Reason,
		}, nil
	}
	return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown event type: "+env.Type)
}
