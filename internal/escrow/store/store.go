// Package store defines the event store contract: durable, keyed, append-only
// persistence of (snapshot, history) pairs. Implementations never evaluate
// business rules; legality is decided before a record reaches them.
package store

import (
	"context"

	"escrowd/internal/escrow/models"
	id "escrowd/pkg/domain"
)

// Record pairs the latest snapshot of an escrow with its full event history.
type Record struct {
	Escrow *models.Escrow `json:"escrow"`
	Events models.History `json:"events"`
}

// Clone returns a defensive copy so callers cannot mutate stored state
// through returned values.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{
		Escrow: r.Escrow.Clone(),
		Events: r.Events.Clone(),
	}
}

// Store is the persistence contract for escrow records. Implementations must
// make Update atomic with respect to its own read-modify-write cycle: two
// concurrent updates on the same id may not lose an appended event.
type Store interface {
	// Create inserts a brand-new record. Returns sentinel.ErrConflict when
	// the id already exists.
	Create(ctx context.Context, record *Record) error
	// Get returns a defensive copy of the record, or sentinel.ErrNotFound.
	Get(ctx context.Context, escrowID id.EscrowID) (*Record, error)
	// Update replaces the stored snapshot and appends the event to the end
	// of the stored history. Existing events are never reordered or removed.
	// Returns sentinel.ErrNotFound when the id is absent.
	Update(ctx context.Context, escrow *models.Escrow, event models.Event) error
	// ListAll enumerates every stored record; order is unspecified.
	ListAll(ctx context.Context) ([]*Record, error)
	// Clear wipes all records. Test isolation only; never routed in normal
	// operation.
	Clear(ctx context.Context) error
}
