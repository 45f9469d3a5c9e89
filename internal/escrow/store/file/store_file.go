// Package file provides a durable escrow store backed by JSON snapshots.
// Production deployments point it at a single canonical path; extra candidate
// paths enable the reconciliation adapter for environments where the process
// working directory is ambiguous.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"escrowd/internal/escrow/models"
	"escrowd/internal/escrow/store"
	id "escrowd/pkg/domain"
	"escrowd/pkg/platform/sentinel"
)

// snapshotFile is the on-disk shape: one JSON document holding every record,
// keyed by escrow id.
type snapshotFile struct {
	Escrows map[string]*store.Record `json:"escrows"`
}

// Store keeps the reconciled map in memory for the life of the process and
// re-serializes it to every candidate location on each mutation, so all
// locations stay mutually consistent going forward. The in-memory map is
// authoritative: persistence failures are logged and swallowed, which trades
// durability on crash for availability (a documented limitation, not a bug
// to paper over).
type Store struct {
	mu      sync.Mutex
	paths   []string
	logger  *slog.Logger
	records map[id.EscrowID]*store.Record
}

// New loads and reconciles every candidate path that exists and parses.
// Corrupt or unreadable locations are treated as empty, not fatal. When an id
// appears in more than one source, the record with the later UpdatedAt wins
// in full: snapshot and event list are taken together from that one source,
// since a later UpdatedAt implies a superset history.
func New(logger *slog.Logger, paths ...string) (*Store, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("file store requires at least one snapshot path")
	}
	s := &Store{
		paths:   paths,
		logger:  logger,
		records: make(map[id.EscrowID]*store.Record),
	}
	s.loadAndReconcile()
	return s, nil
}

func (s *Store) loadAndReconcile() {
	for _, path := range s.paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("snapshot location unreadable, treating as empty",
					"path", path, "error", err.Error())
			}
			continue
		}
		var snap snapshotFile
		if err := json.Unmarshal(data, &snap); err != nil {
			s.logger.Warn("snapshot location corrupt, treating as empty",
				"path", path, "error", err.Error())
			continue
		}
		for key, record := range snap.Escrows {
			escrowID, err := id.ParseEscrowID(key)
			if err != nil || record == nil || record.Escrow == nil {
				s.logger.Warn("skipping malformed snapshot entry", "path", path, "key", key)
				continue
			}
			current, exists := s.records[escrowID]
			if !exists || record.Escrow.UpdatedAt.After(current.Escrow.UpdatedAt) {
				s.records[escrowID] = record
			}
		}
	}
}

func (s *Store) Create(_ context.Context, record *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.Escrow.ID
	if _, exists := s.records[key]; exists {
		return sentinel.ErrConflict
	}
	s.records[key] = record.Clone()
	s.persistLocked()
	return nil
}

func (s *Store) Get(_ context.Context, escrowID id.EscrowID) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	s.persistLocked()
	return nil
}

func (s *Store) ListAll(_ context.Context) ([]*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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
	s.persistLocked()
	return nil
}

// persistLocked writes the whole map to every candidate location. Callers
// hold s.mu. Failures do not fail the logical operation.
func (s *Store) persistLocked() {
	snap := snapshotFile{Escrows: make(map[string]*store.Record, len(s.records))}
	for key, record := range s.records {
		snap.Escrows[key.String()] = record
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		s.logger.Error("marshal snapshot failed", "error", err.Error())
		return
	}

	var g errgroup.Group
	for _, path := range s.paths {
		g.Go(func() error {
			if err := writeAtomic(path, data); err != nil {
				s.logger.Warn("snapshot write failed; in-memory state remains authoritative",
					"path", path, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
}

// writeAtomic writes via a temp file and rename so readers never observe a
// partially written snapshot.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
