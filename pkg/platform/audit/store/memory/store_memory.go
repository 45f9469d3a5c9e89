package memory

import (
	"context"
	"sync"

	"escrowd/pkg/platform/audit"
)

// Store keeps audit entries in memory. Used when no Kafka brokers are
// configured, and as the sink in tests.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns a copy of all recorded entries in append order.
func (s *Store) List() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...)
}
