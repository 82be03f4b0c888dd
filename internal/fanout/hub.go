package fanout

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/events"
	"github.com/wargapos/wargapos/internal/redisx"
)

// Hub fans events out to in-process subscribers, keyed by store. Delivery is
// best-effort and non-durable: a slow subscriber drops events and reconciles
// with a pull-based refresh on reconnect.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
	log  *zap.Logger
}

type Subscriber struct {
	storeID string
	ch      chan events.Envelope
}

// C is the subscriber's event stream.
func (s *Subscriber) C() <-chan events.Envelope { return s.ch }

func NewHub(log *zap.Logger) *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]struct{}), log: log}
}

func (h *Hub) Subscribe(storeID string) *Subscriber {
	s := &Subscriber{storeID: storeID, ch: make(chan events.Envelope, 64)}
	h.mu.Lock()
	if h.subs[storeID] == nil {
		h.subs[storeID] = make(map[*Subscriber]struct{})
	}
	h.subs[storeID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[s.storeID]; ok {
		if _, ok := set[s]; ok {
			delete(set, s)
			close(s.ch)
			if len(set) == 0 {
				delete(h.subs, s.storeID)
			}
		}
	}
	h.mu.Unlock()
}

// SubscriberCount reports how many connections a store currently has.
func (h *Hub) SubscriberCount(storeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[storeID])
}

// Broadcast delivers only to the owning store's subscribers.
func (h *Hub) Broadcast(env events.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[env.StoreID] {
		select {
		case s.ch <- env:
		default:
			h.log.Warn("subscriber lagging, event dropped",
				zap.String("store_id", env.StoreID),
				zap.String("event_type", env.EventType))
		}
	}
}

// Run feeds the hub from the per-store redis channels until ctx is done.
func (h *Hub) Run(ctx context.Context, rdb *redis.Client) error {
	ps := rdb.PSubscribe(ctx, redisx.StoreChannelPattern)
	defer ps.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ps.Channel():
			if !ok {
				return nil
			}
			var env events.Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				h.log.Warn("bad envelope on fanout channel", zap.String("channel", m.Channel), zap.Error(err))
				continue
			}
			h.Broadcast(env)
		}
	}
}
