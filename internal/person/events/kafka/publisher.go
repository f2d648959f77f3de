// Package kafka publishes person domain events to a Kafka topic, keyed by
// person ID so per-person ordering survives partitioning.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/events"
)

type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to the given comma-separated broker list.
func New(brokers, topic string) (*Publisher, error) {
	if brokers == "" {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("events topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.PersonID.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s event: %w", ev.Type, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}

var _ events.Publisher = (*Publisher)(nil)
