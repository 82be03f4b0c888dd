package ledger

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionSale         Action = "sale"
	ActionReservation  Action = "reservation"
	ActionRestock      Action = "restock"
	ActionAdjustment   Action = "adjustment"
	ActionPreorder     Action = "preorder"
	ActionCancellation Action = "cancellation"
	ActionRefund       Action = "refund"
)

func (a Action) Valid() bool {
	switch a {
	case ActionSale, ActionReservation, ActionRestock, ActionAdjustment,
		ActionPreorder, ActionCancellation, ActionRefund:
		return true
	}
	return false
}

// Delta is one requested quantity change. OrderID doubles as the idempotency
// context: a delta whose (order, product, action) already has an audit entry
// is not applied again.
type Delta struct {
	ProductID string
	StoreID   string
	Change    int
	Action    Action
	OrderID   string
	Actor     string
	Reason    string
}

func (d Delta) validate() error {
	if d.ProductID == "" || d.StoreID == "" {
		return fmt.Errorf("%w: product and store required", ErrValidation)
	}
	if d.Change == 0 {
		return fmt.Errorf("%w: zero delta", ErrValidation)
	}
	if !d.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrValidation, d.Action)
	}
	return nil
}

// Entry is one immutable audit record. The trail replays: starting from a
// product's initial quantity and applying every QuantityChange in creation
// order reproduces its current quantity.
type Entry struct {
	ID               string    `json:"id"`
	StoreID          string    `json:"store_id"`
	ProductID        string    `json:"product_id"`
	Action           Action    `json:"action"`
	QuantityChange   int       `json:"quantity_change"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	OrderID          string    `json:"order_id,omitempty"`
	Actor            string    `json:"actor,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Applied pairs a committed delta with the quantity it produced, for
// post-commit event emission.
type Applied struct {
	Delta
	NewQuantity int
}
