package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wargapos/wargapos/internal/auth"
	"github.com/wargapos/wargapos/internal/catalog"
	"github.com/wargapos/wargapos/internal/events"
	"github.com/wargapos/wargapos/internal/fanout"
	"github.com/wargapos/wargapos/internal/ledger"
)

// StockLedger is the admin-facing slice of the ledger: direct quantity
// edits are ledger deltas like everything else.
type StockLedger interface {
	ApplyDelta(ctx context.Context, d ledger.Delta) (int, error)
}

type ProductsHandler struct {
	Repo      *catalog.Repo
	Ledger    StockLedger
	Publisher fanout.Publisher
	Producer  string
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	includeArchived := caller.IsAdmin() && r.URL.Query().Get("include_archived") == "true"
	ps, err := h.Repo.ListProducts(ctx, caller.StoreID, includeArchived)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var req struct {
		SKU                  *string `json:"sku"`
		Name                 string  `json:"name"`
		PriceCents           int64   `json:"price_cents"`
		DiscountPriceCents   *int64  `json:"discount_price_cents"`
		CostCents            *int64  `json:"cost_cents"`
		Quantity             int     `json:"quantity"`
		AvailableForPreorder bool    `json:"available_for_preorder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Repo.CreateProduct(ctx, catalog.Product{
		StoreID:              caller.StoreID,
		SKU:                  req.SKU,
		Name:                 req.Name,
		PriceCents:           req.PriceCents,
		DiscountPriceCents:   req.DiscountPriceCents,
		CostCents:            req.CostCents,
		Quantity:             req.Quantity,
		AvailableForPreorder: req.AvailableForPreorder,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) restock(w http.ResponseWriter, r *http.Request) {
	h.applyAdminDelta(w, r, ledger.ActionRestock, false)
}

func (h *ProductsHandler) adjust(w http.ResponseWriter, r *http.Request) {
	h.applyAdminDelta(w, r, ledger.ActionAdjustment, true)
}

func (h *ProductsHandler) applyAdminDelta(w http.ResponseWriter, r *http.Request, action ledger.Action, allowNegative bool) {
	caller, _ := auth.FromContext(r.Context())
	var req struct {
		Change int    `json:"change"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Change <= 0 && !allowNegative {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "change must be positive"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	newQty, err := h.Ledger.ApplyDelta(ctx, ledger.Delta{
		ProductID: chi.URLParam(r, "productID"),
		StoreID:   caller.StoreID,
		Change:    req.Change,
		Action:    action,
		Actor:     caller.Cashier,
		Reason:    req.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"new_quantity": newQty})
}

func (h *ProductsHandler) archive(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.ArchiveProduct(ctx, caller.StoreID, chi.URLParam(r, "productID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) setStoreStatus(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st, err := h.Repo.SetStoreStatus(ctx, caller.StoreID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Publisher != nil {
		h.Publisher.Publish(ctx, events.New(events.TypeStoreStatusChanged, st.ID, h.Producer,
			events.StoreStatusPayload{Status: st.Status}))
	}
	writeJSON(w, http.StatusOK, st)
}
