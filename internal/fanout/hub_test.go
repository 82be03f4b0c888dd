package fanout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/events"
)

func recv(t *testing.T, s *Subscriber) events.Envelope {
	t.Helper()
	select {
	case env := <-s.C():
		return env
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return events.Envelope{}
	}
}

func TestBroadcastReachesOwnStoreOnly(t *testing.T) {
	h := NewHub(zap.NewNop())
	a := h.Subscribe("store-a")
	b := h.Subscribe("store-b")

	h.Broadcast(events.New(events.TypeInventoryChanged, "store-a", "test",
		events.InventoryChangedPayload{ProductID: "p1", NewQuantity: 7}))

	env := recv(t, a)
	assert.Equal(t, "store-a", env.StoreID)
	assert.Equal(t, events.TypeInventoryChanged, env.EventType)

	select {
	case env := <-b.C():
		t.Fatalf("store-b must never see store-a events, got %s", env.EventType)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesAllStoreSubscribers(t *testing.T) {
	h := NewHub(zap.NewNop())
	s1 := h.Subscribe("store-a")
	s2 := h.Subscribe("store-a")

	h.Broadcast(events.New(events.TypeOrderCreated, "store-a", "test", events.OrderEventPayload{OrderID: "o1"}))

	assert.Equal(t, events.TypeOrderCreated, recv(t, s1).EventType)
	assert.Equal(t, events.TypeOrderCreated, recv(t, s2).EventType)
}

func TestUnsubscribeClosesChannelAndStopsDelivery(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := h.Subscribe("store-a")
	require.Equal(t, 1, h.SubscriberCount("store-a"))

	h.Unsubscribe(s)
	assert.Equal(t, 0, h.SubscriberCount("store-a"))

	_, open := <-s.C()
	assert.False(t, open)

	// must not panic with no subscribers left
	h.Broadcast(events.New(events.TypeOrderCreated, "store-a", "test", nil))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(zap.NewNop())
	s := h.Subscribe("store-a")

	done := make(chan struct{})
	go func() {
		defer close(done)
		// one more than the buffer; the last send must drop, not block
		for i := 0; i < 65; i++ {
			h.Broadcast(events.New(events.TypeInventoryChanged, "store-a", "test", nil))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	assert.Len(t, s.C(), 64)
}
