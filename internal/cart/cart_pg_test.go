package cart

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
)

func testPool(t *testing.T) *pgxpool.Pool {
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
	return pool
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, qty int) (storeID, productID string) {
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
		_, _ = pool.Exec(bg, `DELETE FROM carts WHERE store_id = $1`, storeID)
		_, _ = pool.Exec(bg, `DELETE FROM products WHERE store_id = $1`, storeID)
		_, _ = pool.Exec(bg, `DELETE FROM stores WHERE id = $1`, storeID)
	})
	return storeID, productID
}

func customer(storeID, userID string) auth.Caller {
	return auth.Caller{StoreID: storeID, Role: auth.RoleCustomer, UserID: userID}
}

func TestPGReserveLastUnitExactlyOneWins(t *testing.T) {
	pool := testPool(t)
	storeID, productID := seedProduct(t, pool, 1)
	svc := &Service{DB: pool, TTL: time.Hour, Log: zap.NewNop()}

	_, err := svc.Reserve(context.Background(), customer(storeID, "user-a"), productID, 1)
	require.NoError(t, err)

	_, err = svc.Reserve(context.Background(), customer(storeID, "user-b"), productID, 1)
	var ins *ledger.InsufficientStockError
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, 0, ins.Available, "the last unit is already held")
	assert.Equal(t, 1, ins.Requested)
}

func TestPGReserveIgnoresExpiredHolds(t *testing.T) {
	pool := testPool(t)
	storeID, productID := seedProduct(t, pool, 1)
	svc := &Service{DB: pool, TTL: time.Hour, Log: zap.NewNop()}

	_, err := svc.Reserve(context.Background(), customer(storeID, "user-a"), productID, 1)
	require.NoError(t, err)

	// age user-a's cart past its deadline; the hold no longer counts
	_, err = pool.Exec(context.Background(), `
		UPDATE carts SET expires_at = now() - interval '1 minute'
		WHERE user_id = 'user-a' AND store_id = $1`, storeID)
	require.NoError(t, err)

	c, err := svc.Reserve(context.Background(), customer(storeID, "user-b"), productID, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestPGReserveReplacesOwnHold(t *testing.T) {
	pool := testPool(t)
	storeID, productID := seedProduct(t, pool, 3)
	svc := &Service{DB: pool, TTL: time.Hour, Log: zap.NewNop()}

	_, err := svc.Reserve(context.Background(), customer(storeID, "user-a"), productID, 2)
	require.NoError(t, err)

	// raising the caller's own hold to 3 must not count the prior 2 against it
	c, err := svc.Reserve(context.Background(), customer(storeID, "user-a"), productID, 3)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
}
