// Package redis persists escrow records as JSON values under escrow:{id}.
// Update runs an optimistic WATCH/MULTI cycle with retries so two concurrent
// appends on the same id cannot silently lose one of the events.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"escrowd/internal/escrow/models"
	"escrowd/internal/escrow/store"
	id "escrowd/pkg/domain"
	"escrowd/pkg/platform/sentinel"
)

const (
	keyPrefix = "escrow:"
	// maxTxRetries bounds the WATCH retry loop under contention.
	maxTxRetries = 10
)

// Store implements store.Store on Redis.
type Store struct {
	client redis.UniversalClient
}

// New creates a Redis-backed escrow store.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func key(escrowID id.EscrowID) string {
	return keyPrefix + escrowID.String()
}

func (s *Store) Create(ctx context.Context, record *store.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key(record.Escrow.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Store) Get(ctx context.Context, escrowID id.EscrowID) (*store.Record, error) {
	data, err := s.client.Get(ctx, key(escrowID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	var record store.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &record, nil
}

func (s *Store) Update(ctx context.Context, escrow *models.Escrow, event models.Event) error {
	k := key(escrow.ID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("read record: %w", err)
		}
		var record store.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		record.Escrow = escrow
		record.Events = append(record.Events, event)
		updated, err := json.Marshal(&record)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update record: %w", sentinel.ErrUnavailable)
}

func (s *Store) ListAll(ctx context.Context) ([]*store.Record, error) {
	var records []*store.Record
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("get record: %w", err)
		}
		var record store.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, &record)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}

func (s *Store) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}
