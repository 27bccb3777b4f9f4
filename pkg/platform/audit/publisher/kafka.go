// Package publisher ships audit events to their sinks.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"rtpbridge/pkg/platform/audit"
)

// Kafka publishes audit events as JSON records. Produce is asynchronous;
// a failed delivery is logged by the client, not bounced back to the
// domain operation that emitted the event.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects a franz-go client to brokers for the given topic.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

func (k *Kafka) Emit(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.Action),
		Value: value,
	}
	k.client.Produce(ctx, record, nil)
	return nil
}

// Close flushes pending records and releases the client.
func (k *Kafka) Close(ctx context.Context) error {
	if err := k.client.Flush(ctx); err != nil {
		return err
	}
	k.client.Close()
	return nil
}

// Memory collects events for tests.
type Memory struct {
	mu     sync.Mutex
	events []audit.Event
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Emit(ctx context.Context, event audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (m *Memory) Events() []audit.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Event(nil), m.events...)
}
