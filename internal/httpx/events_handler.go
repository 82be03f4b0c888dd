package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/auth"
	"github.com/wargapos/wargapos/internal/events"
	"github.com/wargapos/wargapos/internal/fanout"
	"github.com/wargapos/wargapos/internal/redisx"
)

// EventsHandler serves the per-store SSE stream. Delivery is best-effort:
// a client that reconnects re-fetches authoritative state instead of
// expecting replay.
type EventsHandler struct {
	Hub       *fanout.Hub
	Redis     *redis.Client
	Publisher fanout.Publisher
	Producer  string
	Log       *zap.Logger
}

func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	fl, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = caller.Actor()
	}

	sub := h.Hub.Subscribe(caller.StoreID)
	defer h.Hub.Unsubscribe(sub)
	h.join(r.Context(), caller.StoreID, name)
	defer h.leave(caller.StoreID, name)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			fl.Flush()
		case env, ok := <-sub.C():
			if !ok {
				return
			}
			b, err := json.Marshal(env)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.EventType, b)
			fl.Flush()
		}
	}
}

// Presence counts connections per name: two tabs under one name stay on the
// roster until the last of them disconnects.
func (h *EventsHandler) join(ctx context.Context, storeID, name string) {
	if err := h.Redis.HIncrBy(ctx, redisx.PresenceKey(storeID), name, 1).Err(); err != nil {
		h.Log.Warn("presence join", zap.Error(err))
		return
	}
	h.publishRoster(ctx, storeID)
}

func (h *EventsHandler) leave(storeID, name string) {
	// request context is gone by the time we disconnect
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := h.Redis.HIncrBy(ctx, redisx.PresenceKey(storeID), name, -1).Result()
	if err != nil {
		h.Log.Warn("presence leave", zap.Error(err))
		return
	}
	if n <= 0 {
		if err := h.Redis.HDel(ctx, redisx.PresenceKey(storeID), name).Err(); err != nil {
			h.Log.Warn("presence leave", zap.Error(err))
		}
	}
	h.publishRoster(ctx, storeID)
}

func (h *EventsHandler) publishRoster(ctx context.Context, storeID string) {
	counts, err := h.Redis.HGetAll(ctx, redisx.PresenceKey(storeID)).Result()
	if err != nil {
		h.Log.Warn("presence roster", zap.Error(err))
		return
	}
	h.Publisher.Publish(ctx, events.New(events.TypePresenceChanged, storeID, h.Producer,
		events.PresencePayload{Roster: rosterFromCounts(counts)}))
}

// rosterFromCounts keeps names with at least one live connection.
func rosterFromCounts(counts map[string]string) []string {
	roster := make([]string, 0, len(counts))
	for name, v := range counts {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			roster = append(roster, name)
		}
	}
	sort.Strings(roster)
	return roster
}
