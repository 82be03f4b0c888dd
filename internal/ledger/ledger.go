package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/events"
	"github.com/wargapos/wargapos/internal/fanout"
)

// Ledger owns the authoritative product quantity. Only the ledger mutates
// it, and only through a single conditional UPDATE, so two concurrent
// decrements can never together drive it below zero. Every applied delta
// commits together with its audit entry.
type Ledger struct {
	DB        *pgxpool.Pool
	Publisher fanout.Publisher
	Producer  string
	Log       *zap.Logger
}

const maxRetries = 3

// ApplyDelta applies one quantity change in its own transaction and emits
// inventory-changed after commit. Idempotent per (order, product, action).
func (l *Ledger) ApplyDelta(ctx context.Context, d Delta) (int, error) {
	if err := d.validate(); err != nil {
		return 0, err
	}
	var newQty int
	var applied bool
	err := l.withRetry(ctx, func() error {
		tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		newQty, applied, err = ApplyDeltaTx(ctx, tx, d)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	if applied {
		l.PublishChanged(ctx, Applied{Delta: d, NewQuantity: newQty})
	}
	return newQty, nil
}

// ApplyDeltaTx runs the conditional update plus its audit insert inside the
// caller's transaction. applied=false means the delta's idempotency context
// was already committed and nothing changed.
func ApplyDeltaTx(ctx context.Context, tx pgx.Tx, d Delta) (newQty int, applied bool, err error) {
	if err := d.validate(); err != nil {
		return 0, false, err
	}

	if d.OrderID != "" {
		var prior int
		err := tx.QueryRow(ctx, `
			SELECT new_quantity FROM stock_audit
			WHERE order_id=$1 AND product_id=$2 AND action=$3
			ORDER BY created_at DESC LIMIT 1`,
			d.OrderID, d.ProductID, string(d.Action)).Scan(&prior)
		if err == nil {
			return prior, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, false, err
		}
	}

	err = tx.QueryRow(ctx, `
		UPDATE products
		SET quantity = quantity + $3, updated_at = now()
		WHERE id = $1 AND store_id = $2 AND quantity + $3 >= 0
		RETURNING quantity`,
		d.ProductID, d.StoreID, d.Change).Scan(&newQty)
	if errors.Is(err, pgx.ErrNoRows) {
		// Guard failed: missing product, wrong store, or not enough stock.
		var available int
		probe := tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1 AND store_id=$2`,
			d.ProductID, d.StoreID).Scan(&available)
		if errors.Is(probe, pgx.ErrNoRows) {
			return 0, false, fmt.Errorf("product %s: %w", d.ProductID, ErrNotFound)
		}
		if probe != nil {
			return 0, false, probe
		}
		return 0, false, &InsufficientStockError{
			ProductID: d.ProductID,
			Requested: -d.Change,
			Available: available,
		}
	}
	if err != nil {
		return 0, false, err
	}

	if err := insertAuditTx(ctx, tx, Entry{
		StoreID:          d.StoreID,
		ProductID:        d.ProductID,
		Action:           d.Action,
		QuantityChange:   d.Change,
		PreviousQuantity: newQty - d.Change,
		NewQuantity:      newQty,
		OrderID:          d.OrderID,
		Actor:            d.Actor,
		Reason:           d.Reason,
	}); err != nil {
		// An un-audited quantity change must not commit.
		return 0, false, fmt.Errorf("audit write: %w", err)
	}
	return newQty, true, nil
}

// ApplyOrderDeltasTx applies every line item of one order inside the
// caller's transaction. If any item is short, all shortfalls are gathered
// and the caller rolls back: the order's deltas are all-or-nothing even
// though each product's update is individually atomic.
func ApplyOrderDeltasTx(ctx context.Context, tx pgx.Tx, deltas []Delta) ([]Applied, []Shortfall, error) {
	var applied []Applied
	var shortfalls []Shortfall
	for _, d := range deltas {
		newQty, did, err := ApplyDeltaTx(ctx, tx, d)
		if err != nil {
			var ins *InsufficientStockError
			if errors.As(err, &ins) {
				shortfalls = append(shortfalls, Shortfall{
					ProductID: ins.ProductID,
					Required:  ins.Requested,
					Available: ins.Available,
				})
				continue
			}
			return nil, nil, err
		}
		if did {
			applied = append(applied, Applied{Delta: d, NewQuantity: newQty})
		}
	}
	if len(shortfalls) > 0 {
		return nil, shortfalls, nil
	}
	return applied, nil, nil
}

// PublishChanged emits inventory-changed for a committed delta.
func (l *Ledger) PublishChanged(ctx context.Context, a Applied) {
	if l.Publisher == nil {
		return
	}
	l.Publisher.Publish(ctx, events.New(events.TypeInventoryChanged, a.StoreID, l.Producer,
		events.InventoryChangedPayload{
			ProductID:      a.ProductID,
			Action:         string(a.Action),
			QuantityChange: a.Change,
			NewQuantity:    a.NewQuantity,
			OrderID:        a.OrderID,
		}))
}

func (l *Ledger) withRetry(ctx context.Context, fn func() error) error {
	return WithRetry(ctx, l.Log, fn)
}

// WithRetry retries serialization conflicts a bounded number of times with
// backoff. Definitive rejections (insufficient stock, not found) pass
// through untouched.
func WithRetry(ctx context.Context, log *zap.Logger, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isSerializationErr(err) {
			return err
		}
		log.Warn("write conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func isSerializationErr(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
