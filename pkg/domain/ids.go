package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Typed IDs keep escrow and event identifiers from being mixed up at call
// sites. They wrap uuid.UUID so stores can serialize them as text.

// EscrowID identifies a single escrow aggregate.
type EscrowID uuid.UUID

// NewEscrowID generates a random escrow ID.
func NewEscrowID() EscrowID {
	return EscrowID(uuid.New())
}

// ParseEscrowID validates and returns an EscrowID.
func ParseEscrowID(s string) (EscrowID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EscrowID{}, fmt.Errorf("invalid escrow id: %w", err)
	}
	return EscrowID(u), nil
}

func (id EscrowID) String() string {
	return uuid.UUID(id).String()
}

// IsNil returns true for the zero-value ID.
func (id EscrowID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id EscrowID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *EscrowID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("invalid escrow id: %w", err)
	}
	*id = EscrowID(u)
	return nil
}

// EventID identifies a single event in an escrow's history.
type EventID uuid.UUID

// NewEventID generates a random event ID.
func NewEventID() EventID {
	return EventID(uuid.New())
}

// ParseEventID validates and returns an EventID.
func ParseEventID(s string) (EventID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EventID{}, fmt.Errorf("invalid event id: %w", err)
	}
	return EventID(u), nil
}

func (id EventID) String() string {
	return uuid.UUID(id).String()
}

// IsNil returns true for the zero-value ID.
func (id EventID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id EventID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *EventID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}
	*id = EventID(u)
	return nil
}

// PartyID names a participant (buyer, seller, or admin operator). Participants
// come from the caller's identity system, so the only constraint enforced here
// is that the identifier is non-blank.
type PartyID string

// ParsePartyID validates and returns a PartyID.
func ParsePartyID(s string) (PartyID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("party id must not be blank")
	}
	return PartyID(s), nil
}

func (p PartyID) String() string {
	return string(p)
}

// IsNil returns true when no party is set.
func (p PartyID) IsNil() bool {
	return p == ""
}
