package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wargapos/wargapos/internal/auth"
	"github.com/wargapos/wargapos/internal/orders"
)

// OrderService is what the handler needs from the order lifecycle.
type OrderService interface {
	Place(ctx context.Context, caller auth.Caller, req orders.PlaceRequest) (orders.Order, error)
	Approve(ctx context.Context, caller auth.Caller, orderID string, pay orders.PaymentInfo) (orders.Order, error)
	Reject(ctx context.Context, caller auth.Caller, orderID, reason string) (orders.Order, error)
	Complete(ctx context.Context, caller auth.Caller, orderID string) (orders.Order, error)
	Delete(ctx context.Context, caller auth.Caller, orderID string) error
	Get(ctx context.Context, caller auth.Caller, orderID string) (orders.Order, error)
	List(ctx context.Context, caller auth.Caller, status orders.Status) ([]orders.Order, error)
}

type OrdersHandler struct {
	Svc OrderService
}

func (h *OrdersHandler) place(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var req orders.PlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Place(ctx, caller, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.Get(ctx, caller, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Svc.List(ctx, caller, orders.Status(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) approve(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var pay orders.PaymentInfo
	if err := json.NewDecoder(r.Body).Decode(&pay); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Approve(ctx, caller, chi.URLParam(r, "orderID"), pay)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) reject(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Reject(ctx, caller, chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) complete(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Svc.Complete(ctx, caller, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) delete(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.Delete(ctx, caller, chi.URLParam(r, "orderID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
