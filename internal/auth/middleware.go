package auth

import (
	"encoding/json"
	"net/http"
)

// Header names filled in by the session layer in front of the core. The core
// never sniffs referrers or cookies; it only consumes this resolved context.
const (
	HeaderStoreID = "X-Store-Id"
	HeaderRole    = "X-Role"
	HeaderUserID  = "X-User-Id"
	HeaderCashier = "X-Cashier"
)

// Middleware resolves the Caller once per request and stores it in the
// context. Requests without a usable identity are rejected here.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := Caller{
			StoreID: r.Header.Get(HeaderStoreID),
			Role:    Role(r.Header.Get(HeaderRole)),
			UserID:  r.Header.Get(HeaderUserID),
			Cashier: r.Header.Get(HeaderCashier),
		}
		if c.Role != RoleAdmin && c.Role != RoleCustomer {
			c.Role = RoleCustomer
		}
		if c.StoreID == "" || (c.IsAdmin() && c.Cashier == "") || (!c.IsAdmin() && c.UserID == "") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing caller identity"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), c)))
	})
}

// RequireAdmin gates admin-only routes.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := FromContext(r.Context())
		if !ok || !c.IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "admin role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
