package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wargapos/wargapos/internal/auth"
	"github.com/wargapos/wargapos/internal/cart"
)

type CartService interface {
	Reserve(ctx context.Context, caller auth.Caller, productID string, qty int) (cart.Cart, error)
	Release(ctx context.Context, caller auth.Caller, productID string) error
	Get(ctx context.Context, caller auth.Caller) (cart.Cart, error)
}

type CartHandler struct {
	Svc CartService
}

func (h *CartHandler) reserve(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Svc.Reserve(ctx, caller, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) release(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Release(ctx, caller, chi.URLParam(r, "productID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Svc.Get(ctx, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
