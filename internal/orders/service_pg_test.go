package orders

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/auth"
	"github.com/wargapos/wargapos/internal/ledger"
	"github.com/wargapos/wargapos/internal/redisx"
)

func testService(t *testing.T) (*Service, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	svc := &Service{
		DB:       pool,
		Ledger:   &ledger.Ledger{DB: pool, Producer: "test", Log: zap.NewNop()},
		Producer: "test",
		Log:      zap.NewNop(),
	}
	if addr := os.Getenv("REDIS_TEST_ADDR"); addr != "" {
		svc.Redis = redisx.New(addr)
		t.Cleanup(func() { _ = svc.Redis.Close() })
	}
	return svc, pool
}

func seedStoreProduct(t *testing.T, pool *pgxpool.Pool, qty int) (storeID, productID string) {
	t.Helper()
	ctx := context.Background()
	storeID = uuid.NewString()
	productID = uuid.NewString()

	_, err := pool.Exec(ctx,
		`INSERT INTO stores (id, name, status) VALUES ($1, 'test-store', 'open')`, storeID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO products (id, store_id, name, price_cents, quantity)
		VALUES ($1, $2, 'widget', 100, $3)`,
		productID, storeID, qty)
	require.NoError(t, err)

	t.Cleanup(func() {
		bg := context.Background()
		_, _ = pool.Exec(bg, `DELETE FROM payments WHERE order_id IN (SELECT id FROM orders WHERE store_id = $1)`, storeID)
		_, _ = pool.Exec(bg, `DELETE FROM orders WHERE store_id = $1`, storeID)
		_, _ = pool.Exec(bg, `DELETE FROM stock_audit WHERE store_id = $1`, storeID)
		_, _ = pool.Exec(bg, `DELETE FROM carts WHERE store_id = $1`, storeID)
		_, _ = pool.Exec(bg, `DELETE FROM products WHERE store_id = $1`, storeID)
		_, _ = pool.Exec(bg, `DELETE FROM stores WHERE id = $1`, storeID)
	})
	return storeID, productID
}

func productQty(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()
	var qty int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT quantity FROM products WHERE id = $1`, productID).Scan(&qty))
	return qty
}

func TestPGPlaceRetrySameExternalID(t *testing.T) {
	svc, pool := testService(t)
	storeID, productID := seedStoreProduct(t, pool, 10)
	caller := auth.Caller{StoreID: storeID, Role: auth.RoleCustomer, UserID: "u1"}
	req := PlaceRequest{ExternalID: "ext-retry", Items: []PlaceItem{{ProductID: productID, Quantity: 2}}}

	first, err := svc.Place(context.Background(), caller, req)
	require.NoError(t, err)
	assert.Equal(t, 8, productQty(t, pool, productID))

	// a retried submit returns the same order and touches no stock
	again, err := svc.Place(context.Background(), caller, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 8, productQty(t, pool, productID))
}

func TestPGDeleteRestoresStockThenAllowsReplacement(t *testing.T) {
	svc, pool := testService(t)
	storeID, productID := seedStoreProduct(t, pool, 10)
	caller := auth.Caller{StoreID: storeID, Role: auth.RoleCustomer, UserID: "u1"}
	req := PlaceRequest{ExternalID: "ext-del", Items: []PlaceItem{{ProductID: productID, Quantity: 3}}}

	placed, err := svc.Place(context.Background(), caller, req)
	require.NoError(t, err)
	require.Equal(t, 7, productQty(t, pool, productID))

	require.NoError(t, svc.Delete(context.Background(), caller, placed.ID))
	assert.Equal(t, 10, productQty(t, pool, productID))

	// the reversal is its own audit entry
	var restored int
	require.NoError(t, pool.QueryRow(context.Background(), `
		SELECT quantity_change FROM stock_audit
		WHERE order_id = $1 AND product_id = $2 AND action = 'cancellation'`,
		placed.ID, productID).Scan(&restored))
	assert.Equal(t, 3, restored)

	// the external id is free again after deletion
	replaced, err := svc.Place(context.Background(), caller, req)
	require.NoError(t, err)
	assert.NotEqual(t, placed.ID, replaced.ID)
	assert.Equal(t, 7, productQty(t, pool, productID))
}

func TestPGPlaceDuplicateLinesDecrementFully(t *testing.T) {
	svc, pool := testService(t)
	storeID, productID := seedStoreProduct(t, pool, 10)
	caller := auth.Caller{StoreID: storeID, Role: auth.RoleCustomer, UserID: "u1"}

	o, err := svc.Place(context.Background(), caller, PlaceRequest{
		ExternalID: "ext-dup",
		Items: []PlaceItem{
			{ProductID: productID, Quantity: 2},
			{ProductID: productID, Quantity: 3},
		},
	})
	require.NoError(t, err)

	// one merged line; charged and decremented for all five units
	require.Len(t, o.Items, 1)
	assert.Equal(t, 5, o.Items[0].Quantity)
	assert.Equal(t, int64(500), o.FinalCents)
	assert.Equal(t, 5, productQty(t, pool, productID))
}
