package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("write conflict")
	ErrValidation = errors.New("invalid input")
)

// InsufficientStockError is a definitive rejection: callers surface the
// available count to the user and must not retry.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Shortfall reports one short line item of a multi-item operation.
type Shortfall struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}
