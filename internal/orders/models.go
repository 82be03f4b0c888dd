package orders

import (
	"fmt"
	"time"

	"github.com/wargapos/wargapos/internal/ledger"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

type Order struct {
	ID             string         `json:"id"`
	StoreID        string         `json:"store_id"`
	UserID         string         `json:"user_id"`
	ExternalID     string         `json:"external_id"`
	IsPreorder     bool           `json:"is_preorder"`
	Status         Status         `json:"status"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	SubtotalCents  int64          `json:"subtotal_cents"`
	TaxCents       int64          `json:"tax_cents"`
	DiscountCents  int64          `json:"discount_cents"`
	FinalCents     int64          `json:"final_cents"`
	PaidCents      int64          `json:"paid_cents"`
	DueCents       int64          `json:"due_cents"`
	Notes          string         `json:"notes,omitempty"`
	Cashier        string         `json:"cashier,omitempty"`
	ApprovedBy     string         `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time     `json:"approved_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Items          []Item         `json:"items,omitempty"`
	Payments       []Payment      `json:"payments,omitempty"`
}

// Item is an immutable snapshot taken at placement; later price or name
// edits never change a historical order.
type Item struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

type Payment struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	Method      string    `json:"method,omitempty"`
	ReceivedBy  string    `json:"received_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type PlaceItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"qty"`
}

type PaymentInfo struct {
	AmountPaidCents int64  `json:"amount_paid_cents"`
	Method          string `json:"method"`
}

// InvalidTransitionError reports a state machine violation, e.g. approving
// an already-rejected order.
type InvalidTransitionError struct {
	From Status
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an order in status %q", e.Op, e.From)
}

// ShortfallError carries every short line item of a placement or preorder
// approval. The transition is all-or-nothing; nothing was applied.
type ShortfallError struct {
	Shortfalls []ledger.Shortfall
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("insufficient stock for %d item(s)", len(e.Shortfalls))
}
