package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wargapos/wargapos/internal/cart"
	"github.com/wargapos/wargapos/internal/ledger"
	"github.com/wargapos/wargapos/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the core error taxonomy onto HTTP. Insufficient stock
// always carries the live available count back to the user.
func writeError(w http.ResponseWriter, err error) {
	var ins *ledger.InsufficientStockError
	if errors.As(err, &ins) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient_stock",
			"product_id": ins.ProductID,
			"requested":  ins.Requested,
			"available":  ins.Available,
		})
		return
	}
	var short *orders.ShortfallError
	if errors.As(err, &short) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient_stock",
			"shortfalls": short.Shortfalls,
		})
		return
	}
	var trans *orders.InvalidTransitionError
	if errors.As(err, &trans) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "invalid_transition",
			"message": trans.Error(),
		})
		return
	}
	switch {
	case errors.Is(err, cart.ErrExpired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cart_expired"})
	case errors.Is(err, ledger.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ledger.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ledger.ErrConflict):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "please try again"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
