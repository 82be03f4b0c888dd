package fanout

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/wargapos/wargapos/internal/events"
	kafkax "github.com/wargapos/wargapos/internal/kafka"
)

// Publisher is the capability components use to emit store events. It is
// injected explicitly; nothing reaches for a process-wide broadcast handle.
type Publisher interface {
	Publish(ctx context.Context, env events.Envelope)
}

// KafkaPublisher writes envelopes to the store-events topic, keyed by store
// so per-store ordering survives partitioning.
type KafkaPublisher struct {
	Producer *kafkax.Producer
}

func (p *KafkaPublisher) Publish(_ context.Context, env events.Envelope) {
	p.Producer.Publish(events.PartitionKey(env.StoreID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// Nop is used where no fanout is wired (tests, one-shot tools).
type Nop struct{}

func (Nop) Publish(context.Context, events.Envelope) {}
