// Package kafka implements a write-only audit Store producing to a Kafka
// topic. Kafka is the pipeline of record for custody audit events; reads
// happen downstream, never through this publisher.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
)

// Publisher produces audit events to a single topic, keyed by subject so
// per-vault event order is preserved within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
}

func New(brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Append produces the event synchronously; the caller blocks until the
// broker acknowledges or the produce fails.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Subject),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// List is unsupported; the Kafka pipeline is write-only from this side.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return nil, sentinel.ErrUnavailable
}

func (p *Publisher) Close() {
	p.client.Close()
}
