package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callWith(t *testing.T, h http.Handler, headers map[string]string) (*httptest.ResponseRecorder, Caller, bool) {
	t.Helper()
	var (
		got   Caller
		found bool
	)
	wrapped := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	if h != nil {
		wrapped = h
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	return rec, got, found
}

func TestMiddlewareResolvesCustomer(t *testing.T) {
	rec, c, ok := callWith(t, nil, map[string]string{
		HeaderStoreID: "s1",
		HeaderUserID:  "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.Equal(t, "s1", c.StoreID)
	assert.Equal(t, RoleCustomer, c.Role)
	assert.Equal(t, "u1", c.Actor())
	assert.False(t, c.IsAdmin())
}

func TestMiddlewareResolvesAdmin(t *testing.T) {
	rec, c, ok := callWith(t, nil, map[string]string{
		HeaderStoreID: "s1",
		HeaderRole:    "admin",
		HeaderCashier: "kasir-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.True(t, c.IsAdmin())
	assert.Equal(t, "kasir-1", c.Actor())
}

func TestMiddlewareUnknownRoleFallsBackToCustomer(t *testing.T) {
	rec, c, _ := callWith(t, nil, map[string]string{
		HeaderStoreID: "s1",
		HeaderRole:    "superuser",
		HeaderUserID:  "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RoleCustomer, c.Role)
}

func TestMiddlewareRejectsMissingIdentity(t *testing.T) {
	cases := []map[string]string{
		{},                                        // nothing
		{HeaderUserID: "u1"},                      // no store
		{HeaderStoreID: "s1"},                     // customer without user id
		{HeaderStoreID: "s1", HeaderRole: "admin"}, // admin without cashier
	}
	for _, hs := range cases {
		rec, _, _ := callWith(t, nil, hs)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "headers %v", hs)
	}
}

func TestRequireAdmin(t *testing.T) {
	inner := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec, _, _ := callWith(t, Middleware(inner), map[string]string{
		HeaderStoreID: "s1",
		HeaderUserID:  "u1",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _, _ = callWith(t, Middleware(inner), map[string]string{
		HeaderStoreID: "s1",
		HeaderRole:    "admin",
		HeaderCashier: "kasir-1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	// no caller in context at all
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	bare := httptest.NewRecorder()
	inner.ServeHTTP(bare, req)
	assert.Equal(t, http.StatusForbidden, bare.Code)
}
