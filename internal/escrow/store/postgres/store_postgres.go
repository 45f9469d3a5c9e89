// Package postgres persists escrow records in two tables: escrows holds the
// latest snapshot, escrow_events the append-only history. Snapshot update and
// event append happen in one transaction, so the read-modify-write cycle of
// Update cannot lose an append.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"escrowd/internal/escrow/models"
	"escrowd/internal/escrow/store"
	id "escrowd/pkg/domain"
	"escrowd/pkg/platform/sentinel"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed escrow store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema for the two tables. Events carry a per-escrow position so the
// history order survives round-trips; the payload is the tagged event JSON.
const schema = `
CREATE TABLE IF NOT EXISTS escrows (
	id            UUID PRIMARY KEY,
	buyer_id      TEXT        NOT NULL,
	seller_id     TEXT        NOT NULL,
	amount        BIGINT      NOT NULL,
	description   TEXT        NOT NULL,
	current_state TEXT        NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS escrow_events (
	id          UUID  PRIMARY KEY,
	escrow_id   UUID  NOT NULL REFERENCES escrows (id) ON DELETE CASCADE,
	position    INT   NOT NULL,
	payload     JSONB NOT NULL,
	UNIQUE (escrow_id, position)
);
`

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate escrow schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, record *store.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	e := record.Escrow
	res, err := tx.ExecContext(ctx, `
		INSERT INTO escrows (id, buyer_id, seller_id, amount, description, current_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, e.ID.String(), e.BuyerID.String(), e.SellerID.String(), e.Amount, e.Description,
		e.CurrentState.String(), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert escrow: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}

	for i, ev := range record.Events {
		if err := insertEvent(ctx, tx, e.ID, i, ev); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, escrowID id.EscrowID) (*store.Record, error) {
	escrow, err := s.getEscrow(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	events, err := s.getEvents(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	return &store.Record{Escrow: escrow, Events: events}, nil
}

func (s *Store) Update(ctx context.Context, escrow *models.Escrow, event models.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE escrows SET current_state = $2, updated_at = $3 WHERE id = $1
	`, escrow.ID.String(), escrow.CurrentState.String(), escrow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update escrow: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}

	// Next position is derived inside the same transaction; the unique
	// (escrow_id, position) constraint rejects a lost-update race outright.
	var next int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM escrow_events WHERE escrow_id = $1
	`, escrow.ID.String()).Scan(&next); err != nil {
		return fmt.Errorf("next event position: %w", err)
	}
	if err := insertEvent(ctx, tx, escrow.ID, next, event); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (s *Store) ListAll(ctx context.Context) ([]*store.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, buyer_id, seller_id, amount, description, current_state, created_at, updated_at
		FROM escrows
	`)
	if err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	defer rows.Close()

	var records []*store.Record
	for rows.Next() {
		escrow, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, &store.Record{Escrow: escrow})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list escrows: %w", err)
	}
	for _, record := range records {
		events, err := s.getEvents(ctx, record.Escrow.ID)
		if err != nil {
			return nil, err
		}
		record.Events = events
	}
	return records, nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE escrows CASCADE`); err != nil {
		return fmt.Errorf("clear escrows: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEscrow(row rowScanner) (*models.Escrow, error) {
	var (
		escrow            models.Escrow
		rawID             string
		buyerID, sellerID string
		state             string
	)
	if err := row.Scan(&rawID, &buyerID, &sellerID, &escrow.Amount, &escrow.Description,
		&state, &escrow.CreatedAt, &escrow.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan escrow: %w", err)
	}
	escrowID, err := id.ParseEscrowID(rawID)
	if err != nil {
		return nil, err
	}
	escrow.ID = escrowID
	escrow.BuyerID = id.PartyID(buyerID)
	escrow.SellerID = id.PartyID(sellerID)
	escrow.CurrentState = models.State(state)
	return &escrow, nil
}

func (s *Store) getEscrow(ctx context.Context, escrowID id.EscrowID) (*models.Escrow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, seller_id, amount, description, current_state, created_at, updated_at
		FROM escrows WHERE id = $1
	`, escrowID.String())
	escrow, err := scanEscrow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return escrow, nil
}

func (s *Store) getEvents(ctx context.Context, escrowID id.EscrowID) (models.History, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM escrow_events WHERE escrow_id = $1 ORDER BY position
	`, escrowID.String())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events models.History
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := models.UnmarshalEvent(payload)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, ex execer, escrowID id.EscrowID, position int, ev models.Event) error {
	payload, err := models.MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	var eventID string
	switch e := ev.(type) {
	case models.Created:
		eventID = e.ID.String()
	case models.StateChanged:
		eventID = e.ID.String()
	}
	if _, err := ex.ExecContext(ctx, `
		INSERT INTO escrow_events (id, escrow_id, position, payload)
		VALUES ($1, $2, $3, $4)
	`, eventID, escrowID.String(), position, payload); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
