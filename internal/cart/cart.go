package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/auth"
	"github.com/wargapos/wargapos/internal/ledger"
)

// ErrExpired rejects writes against a cart that outlived its TTL.
var ErrExpired = errors.New("cart expired")

type Item struct {
	ProductID      string    `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	ReservedAt     time.Time `json:"reserved_at"`
}

type Cart struct {
	UserID    string    `json:"user_id"`
	StoreID   string    `json:"store_id"`
	Items     []Item    `json:"items"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Expired   bool      `json:"expired,omitempty"`
}

// IsExpired is the single expiry rule: a cart past its deadline is treated
// as absent for reservation purposes.
func IsExpired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && now.After(expiresAt)
}

// Service holds soft per-(user,store) stock holds. Holds never touch the
// ledger; stock is committed at order placement.
type Service struct {
	DB  *pgxpool.Pool
	TTL time.Duration
	Log *zap.Logger
}

// Reserve sets the caller's hold on a product to qty. Availability is
// on-hand stock minus every other cart's live hold, so two users racing for
// the last unit serialize on the product row and exactly one wins. The
// caller's own prior hold is replaced, never double-counted.
func (s *Service) Reserve(ctx context.Context, caller auth.Caller, productID string, qty int) (Cart, error) {
	if qty < 1 {
		return Cart{}, fmt.Errorf("%w: quantity must be >= 1", ledger.ErrValidation)
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Cart{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Upsert-and-lock the cart row so two tabs of the same user serialize.
	now := time.Now().UTC()
	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO carts (user_id, store_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, store_id) DO UPDATE SET updated_at = now()
		RETURNING expires_at`,
		caller.UserID, caller.StoreID, now.Add(s.TTL)).Scan(&expiresAt)
	if err != nil {
		return Cart{}, err
	}
	if IsExpired(expiresAt, now) {
		// Stale hold: drop it and start a fresh cart in the same write.
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND store_id=$2`,
			caller.UserID, caller.StoreID); err != nil {
			return Cart{}, err
		}
	}

	var onHand int
	var priceCents int64
	var discount *int64
	var archived bool
	err = tx.QueryRow(ctx, `
		SELECT quantity, price_cents, discount_price_cents, archived
		FROM products WHERE id=$1 AND store_id=$2
		FOR UPDATE`,
		productID, caller.StoreID).Scan(&onHand, &priceCents, &discount, &archived)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cart{}, fmt.Errorf("product %s: %w", productID, ledger.ErrNotFound)
	}
	if err != nil {
		return Cart{}, err
	}
	if archived {
		return Cart{}, fmt.Errorf("%w: product no longer available", ledger.ErrValidation)
	}

	// Other carts' live holds reduce what this caller may reserve.
	var held int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(ci.quantity), 0)
		FROM cart_items ci
		JOIN carts c ON c.user_id = ci.user_id AND c.store_id = ci.store_id
		WHERE ci.product_id=$1 AND ci.store_id=$2 AND ci.user_id <> $3
		  AND c.expires_at >= now()`,
		productID, caller.StoreID, caller.UserID).Scan(&held)
	if err != nil {
		return Cart{}, err
	}
	available := onHand - held
	if available < 0 {
		available = 0
	}
	if qty > available {
		return Cart{}, &ledger.InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}

	unit := priceCents
	if discount != nil && *discount > 0 && *discount < priceCents {
		unit = *discount
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO cart_items (user_id, store_id, product_id, quantity, unit_price_cents)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (user_id, store_id, product_id)
		DO UPDATE SET quantity=$4, unit_price_cents=$5, reserved_at=now()`,
		caller.UserID, caller.StoreID, productID, qty, unit); err != nil {
		return Cart{}, err
	}

	// Every mutation pushes the expiry out.
	if _, err := tx.Exec(ctx, `
		UPDATE carts SET expires_at=$3, updated_at=now()
		WHERE user_id=$1 AND store_id=$2`,
		caller.UserID, caller.StoreID, now.Add(s.TTL)); err != nil {
		return Cart{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Cart{}, err
	}
	return s.Get(ctx, caller)
}

// Release drops the hold on one product; an empty cart row is removed.
func (s *Service) Release(ctx context.Context, caller auth.Caller, productID string) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM cart_items WHERE user_id=$1 AND store_id=$2 AND product_id=$3`,
		caller.UserID, caller.StoreID, productID); err != nil {
		return err
	}
	var remaining int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM cart_items WHERE user_id=$1 AND store_id=$2`,
		caller.UserID, caller.StoreID).Scan(&remaining); err != nil {
		return err
	}
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE user_id=$1 AND store_id=$2`,
			caller.UserID, caller.StoreID); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE carts SET expires_at=$3, updated_at=now() WHERE user_id=$1 AND store_id=$2`,
			caller.UserID, caller.StoreID, time.Now().UTC().Add(s.TTL)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// Get returns the cart for display; an expired cart is still readable but
// flagged, and writes against it start over.
func (s *Service) Get(ctx context.Context, caller auth.Caller) (Cart, error) {
	c := Cart{UserID: caller.UserID, StoreID: caller.StoreID}
	err := s.DB.QueryRow(ctx, `
		SELECT expires_at FROM carts WHERE user_id=$1 AND store_id=$2`,
		caller.UserID, caller.StoreID).Scan(&c.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return Cart{}, err
	}
	c.Expired = IsExpired(c.ExpiresAt, time.Now().UTC())

	rows, err := s.DB.Query(ctx, `
		SELECT ci.product_id, p.name, ci.quantity, ci.unit_price_cents, ci.reserved_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id=$1 AND ci.store_id=$2
		ORDER BY ci.reserved_at`,
		caller.UserID, caller.StoreID)
	if err != nil {
		return Cart{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPriceCents, &it.ReservedAt); err != nil {
			return Cart{}, err
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

// ItemsTx loads the cart's holds inside the caller's transaction, for order
// materialization. Expired carts report expired=true and no items.
func ItemsTx(ctx context.Context, tx pgx.Tx, userID, storeID string) (items []Item, expired bool, err error) {
	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT expires_at FROM carts WHERE user_id=$1 AND store_id=$2 FOR UPDATE`,
		userID, storeID).Scan(&expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if IsExpired(expiresAt, time.Now().UTC()) {
		return nil, true, nil
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity, unit_price_cents, reserved_at
		FROM cart_items WHERE user_id=$1 AND store_id=$2
		ORDER BY reserved_at`, userID, storeID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.ReservedAt); err != nil {
			return nil, false, err
		}
		items = append(items, it)
	}
	return items, false, rows.Err()
}

// ClearTx removes the cart once its holds are committed into an order.
func ClearTx(ctx context.Context, tx pgx.Tx, userID, storeID string) error {
	_, err := tx.Exec(ctx, `DELETE FROM carts WHERE user_id=$1 AND store_id=$2`, userID, storeID)
	return err
}
