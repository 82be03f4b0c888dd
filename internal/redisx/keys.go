package redisx

import (
	"fmt"
	"time"
)

const (
	// Idempotency fast-path for order placement: idem:order:{store_id}:{external_id} -> order_id.
	// The orders table unique constraint stays authoritative.
	keyIdemOrder = "idem:order:%s:%s"

	// Dedup for event processing: dedup:{consumer}:{event_id}.
	keyDedup = "dedup:%s:%s"

	// Per-store fanout channel. Tenant isolation lives in the channel name.
	keyStoreChannel = "store:%s:events"

	// Presence per store: hash of client name -> open connection count.
	keyPresence = "store:%s:presence"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)

func IdemOrderKey(storeID, externalID string) string {
	return fmt.Sprintf(keyIdemOrder, storeID, externalID)
}

func DedupKey(consumer, eventID string) string {
	return fmt.Sprintf(keyDedup, consumer, eventID)
}

func StoreChannel(storeID string) string {
	return fmt.Sprintf(keyStoreChannel, storeID)
}

// StoreChannelPattern matches every store channel; the bridge publishes into
// concrete channels, the hub psubscribes to all of them.
const StoreChannelPattern = "store:*:events"

func PresenceKey(storeID string) string {
	return fmt.Sprintf(keyPresence, storeID)
}
