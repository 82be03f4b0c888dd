package worker

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/events"
	"github.com/wargapos/wargapos/internal/redisx"
)

// Bridge moves store events from Kafka into each store's redis channel,
// where the API's hub delivers them to connected clients. Consumption is
// at-least-once; redis dedup by event id keeps redeliveries idempotent.
type Bridge struct {
	Redis *redis.Client
	Log   *zap.Logger
}

// Handle is wired as the kafka consumer handler.
func (b *Bridge) Handle(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// malformed message; commit past it rather than wedging the group
		b.Log.Warn("bridge: bad envelope", zap.Error(err))
		return nil
	}
	if env.StoreID == "" {
		return nil
	}

	dkey := redisx.DedupKey("fanout", env.EventID)
	seen, err := redisx.Exists(ctx, b.Redis, dkey)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	if err := b.Redis.Publish(ctx, redisx.StoreChannel(env.StoreID), m.Value).Err(); err != nil {
		return err
	}
	return b.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
}
