package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wargapos/wargapos/internal/auth"
	"github.com/wargapos/wargapos/internal/ledger"
)

// db is satisfied by both *pgxpool.Pool and pgx.Tx.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderCols = `id, store_id, user_id, external_id, is_preorder, status, approval_status,
	payment_status, subtotal_cents, tax_cents, discount_cents, final_cents, paid_cents, due_cents,
	notes, cashier, approved_by, approved_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.StoreID, &o.UserID, &o.ExternalID, &o.IsPreorder, &o.Status,
		&o.ApprovalStatus, &o.PaymentStatus, &o.SubtotalCents, &o.TaxCents, &o.DiscountCents,
		&o.FinalCents, &o.PaidCents, &o.DueCents, &o.Notes, &o.Cashier, &o.ApprovedBy,
		&o.ApprovedAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order: %w", ledger.ErrNotFound)
	}
	return o, err
}

// Get returns an order scoped to the caller's store; customers only ever
// see their own rows.
func (s *Service) Get(ctx context.Context, caller auth.Caller, orderID string) (Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE id=$1 AND store_id=$2`
	args := []any{orderID, caller.StoreID}
	if !caller.IsAdmin() {
		q += ` AND user_id=$3`
		args = append(args, caller.UserID)
	}
	o, err := scanOrder(s.DB.QueryRow(ctx, q, args...))
	if err != nil {
		return Order{}, err
	}
	if o.Items, err = loadItems(ctx, s.DB, o.ID); err != nil {
		return Order{}, err
	}
	if o.Payments, err = loadPayments(ctx, s.DB, o.ID); err != nil {
		return Order{}, err
	}
	return o, nil
}

// List returns a store's orders newest-first; status narrows when set.
func (s *Service) List(ctx context.Context, caller auth.Caller, status Status) ([]Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE store_id=$1`
	args := []any{caller.StoreID}
	if !caller.IsAdmin() {
		args = append(args, caller.UserID)
		q += fmt.Sprintf(` AND user_id=$%d`, len(args))
	}
	if status != "" {
		args = append(args, string(status))
		q += fmt.Sprintf(` AND status=$%d`, len(args))
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Service) getByExternal(ctx context.Context, storeID, externalID string) (Order, error) {
	var id string
	err := s.DB.QueryRow(ctx, `SELECT id FROM orders WHERE store_id=$1 AND external_id=$2`,
		storeID, externalID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order: %w", ledger.ErrNotFound)
	}
	if err != nil {
		return Order{}, err
	}
	return s.Get(ctx, auth.Caller{StoreID: storeID, Role: auth.RoleAdmin}, id)
}

// lockOrderTx loads and row-locks an order for a state transition.
func lockOrderTx(ctx context.Context, tx pgx.Tx, storeID, orderID string) (Order, error) {
	return scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id=$1 AND store_id=$2 FOR UPDATE`,
		orderID, storeID))
}

func loadItems(ctx context.Context, q db, orderID string) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents, total_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPriceCents, &it.TotalCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func loadPayments(ctx context.Context, q db, orderID string) ([]Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, amount_cents, method, received_by, created_at
		FROM payments WHERE order_id=$1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.AmountCents, &p.Method, &p.ReceivedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
