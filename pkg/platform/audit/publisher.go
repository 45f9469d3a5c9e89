package audit

import (
	"context"
	"time"
)

// Store is the sink contract for audit entries.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher stamps and forwards audit events. It uses the store abstraction
// for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}
