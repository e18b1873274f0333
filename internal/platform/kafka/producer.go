// Package kafka wraps the franz-go client for the audit event stream.
package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"didhub/internal/platform/config"
)

// Producer publishes records to a single topic. Returns nil if no brokers are
// configured (Kafka disabled).
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New dials the brokers and verifies connectivity with a ping.
func New(cfg config.Kafka, logger *slog.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return &Producer{client: client, topic: cfg.Topic, logger: logger}, nil
}

// Publish produces asynchronously. Delivery failures are logged, not
// returned: audit publication must never fail the business operation.
func (p *Producer) Publish(ctx context.Context, key string, payload []byte) {
	record := &kgo.Record{Topic: p.topic, Key: []byte(key), Value: payload}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("audit event delivery failed", "topic", r.Topic, "key", string(r.Key), "error", err)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
