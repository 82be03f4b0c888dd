package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeInventoryChanged   = "inventory-changed"
	TypeOrderCreated       = "order-created"
	TypeOrderUpdated       = "order-updated"
	TypeOrderDeleted       = "order-deleted"
	TypeCartExpired        = "cart-expired"
	TypeStoreStatusChanged = "store-status-changed"
	TypePresenceChanged    = "presence-changed"
)

// Envelope is the wire shape of every fanout event. Payloads carry enough
// for a subscriber to update its view, but they are hints: clients re-fetch
// authoritative state after a reconnect.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	StoreID      string          `json:"store_id"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

func New(eventType, storeID, producer string, payload any) Envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		StoreID:      storeID,
		Producer:     producer,
		Payload:      b,
	}
}

// ---- payloads ----

type InventoryChangedPayload struct {
	ProductID      string `json:"product_id"`
	Action         string `json:"action"`
	QuantityChange int    `json:"quantity_change"`
	NewQuantity    int    `json:"new_quantity"`
	OrderID        string `json:"order_id,omitempty"`
}

type OrderEventPayload struct {
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	Status         string `json:"status"`
	ApprovalStatus string `json:"approval_status"`
	PaymentStatus  string `json:"payment_status,omitempty"`
	FinalCents     int64  `json:"final_cents,omitempty"`
	IsPreorder     bool   `json:"is_preorder,omitempty"`
}

type CartExpiredPayload struct {
	UserID string `json:"user_id"`
}

type StoreStatusPayload struct {
	Status string `json:"status"`
}

type PresencePayload struct {
	Roster []string `json:"roster"`
}
