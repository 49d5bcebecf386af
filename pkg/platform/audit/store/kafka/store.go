// Package kafka ships audit events to a Kafka topic. It is write-only: reads go
// to whatever consumes the topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "onboard/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client used by the store.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type Store struct {
	producer Producer
	topic    string
}

// New dials the brokers. The client is owned by the store; call Close.
func New(brokers []string, topic string) (*Store, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka audit store requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka audit store requires a topic")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Store{producer: client, topic: topic}, nil
}

// NewWithProducer wraps an existing producer, for tests.
func NewWithProducer(p Producer, topic string) *Store {
	return &Store{producer: p, topic: topic}
}

// Append produces one record keyed by business id so a business's events stay
// ordered within a partition.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.BusinessID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// ListByBusiness is not supported by a Kafka sink.
func (s *Store) ListByBusiness(context.Context, string) ([]audit.Event, error) {
	return []audit.Event{}, nil
}

func (s *Store) Close() {
	s.producer.Close()
}
