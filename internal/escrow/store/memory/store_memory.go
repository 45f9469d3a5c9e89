// Package memory provides the canonical in-process escrow store. A single
// mutex serializes every read-modify-write, which is what makes concurrent
// Update calls on the same id safe: neither append can be lost.
package memory

import (
	"context"
	"sync"

	"escrowd/internal/escrow/models"
	"escrowd/internal/escrow/store"
	id "escrowd/pkg/domain"
	"escrowd/pkg/platform/sentinel"
)

// Store keeps records in a mutex-guarded map. It intentionally favors
// clarity over performance.
type Store struct {
	mu      sync.RWMutex
	records map[id.EscrowID]*store.Record
}

// New constructs an empty in-memory store. Each caller gets an independent
// instance; there is no process-wide shared state.
func New() *Store {
	return &Store{records: make(map[id.EscrowID]*store.Record)}
}

func (s *Store) Create(_ context.Context, record *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.Escrow.ID
	if _, exists := s.records[key]; exists {
		return sentinel.ErrConflict
	}
	s.records[key] = record.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, escrowID id.EscrowID) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[escrowID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *Store) Update(_ context.Context, escrow *models.Escrow, event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[escrow.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	record.Escrow = escrow.Clone()
	record.Events = append(record.Events, event)
	return nil
}

func (s *Store) ListAll(_ context.Context) ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Clone())
	}
	return out, nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[id.EscrowID]*store.Record)
	return nil
}
