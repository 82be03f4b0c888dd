package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/wargapos/wargapos/internal/auth"
	"github.com/wargapos/wargapos/internal/ledger"
)

type AuditReader interface {
	QueryAudit(ctx context.Context, storeID string, f ledger.Filter) ([]ledger.Entry, int, error)
}

type AuditHandler struct {
	Reader AuditReader
}

func (h *AuditHandler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())
	q := r.URL.Query()

	f := ledger.Filter{
		ProductID: q.Get("product_id"),
		Action:    ledger.Action(q.Get("action")),
		Search:    q.Get("q"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from: expected RFC3339"})
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to: expected RFC3339"})
			return
		}
		f.To = t
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, total, err := h.Reader.QueryAudit(ctx, caller.StoreID, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": total})
}
