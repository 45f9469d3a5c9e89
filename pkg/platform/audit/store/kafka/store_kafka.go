// Package kafka publishes audit entries to a Kafka topic. Production sends
// are fire-and-forget: a failed produce is logged, never bubbled into the
// request path, since losing an audit record must not fail the escrow
// operation that produced it.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"escrowd/pkg/platform/audit"
)

// Store implements audit.Store on a Kafka topic.
type Store struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the audit topic exists.
func New(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Store, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resps, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	for _, resp := range resps.Sorted() {
		// Topic creation races with other instances; an existing topic is fine.
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure audit topic %s: %w", resp.Topic, resp.Err)
		}
	}

	return &Store{client: client, topic: topic, logger: logger}, nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.EscrowID),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn("audit produce failed",
				"topic", s.topic,
				"escrow_id", event.EscrowID,
				"error", err.Error(),
			)
		}
	})
	return nil
}

// Close flushes pending produces and releases the client.
func (s *Store) Close() {
	s.client.Close()
}
