package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"didhub/internal/platform/kafka"
	"didhub/pkg/requestcontext"
)

// Publisher emits audit events for security-relevant operations.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// Emit fills request-scoped fields and the timestamp before handing the event
// to the publisher. Services call this helper instead of the port directly so
// enrichment stays in one place. A nil publisher is a no-op.
func Emit(ctx context.Context, p Publisher, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	p.Emit(ctx, event)
}

// KafkaPublisher serializes events to JSON and produces them keyed by DID so
// one identity's history stays ordered within a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (p *KafkaPublisher) Emit(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal audit event", "action", event.Action, "error", err)
		return
	}
	p.producer.Publish(ctx, event.DID, payload)
}

// MemoryPublisher records events in memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Emit(_ context.Context, event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of everything emitted so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
