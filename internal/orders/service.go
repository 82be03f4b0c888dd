package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wargapos/wargapos/internal/auth"
	"github.com/wargapos/wargapos/internal/cart"
	"github.com/wargapos/wargapos/internal/events"
	"github.com/wargapos/wargapos/internal/fanout"
	"github.com/wargapos/wargapos/internal/ledger"
	"github.com/wargapos/wargapos/internal/redisx"
)

// Service drives the order/preorder lifecycle. Placement commits stock
// (decrement-on-placement); approval of a regular order is validate-only,
// approval of a preorder is the one transition that applies deltas.
type Service struct {
	DB        *pgxpool.Pool
	Redis     *redis.Client // optional idempotency fast path
	Ledger    *ledger.Ledger
	Publisher fanout.Publisher
	Producer  string
	Log       *zap.Logger
}

type PlaceRequest struct {
	ExternalID string      `json:"external_id"`
	Items      []PlaceItem `json:"items"`    // empty: materialize the caller's cart
	Preorder   bool        `json:"preorder"` // every product must allow preorder
}

// Place validates every line against live stock (never the cart snapshot),
// prices from current product rows, persists the order pending/pending and,
// for regular orders, applies the sale deltas in the same transaction.
// Idempotent per (store, external_id): a retried placement returns the
// existing order without touching stock again.
func (s *Service) Place(ctx context.Context, caller auth.Caller, req PlaceRequest) (Order, error) {
	if req.ExternalID == "" {
		return Order{}, fmt.Errorf("%w: external_id required", ledger.ErrValidation)
	}
	// Fast path first, then the table; the unique constraint stays authoritative.
	if id := s.idemLookup(ctx, caller.StoreID, req.ExternalID); id != "" {
		o, err := s.Get(ctx, auth.Caller{StoreID: caller.StoreID, Role: auth.RoleAdmin}, id)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return Order{}, err
		}
		// key outlived a deleted order; fall through to a fresh placement
		s.idemDrop(ctx, caller.StoreID, req.ExternalID)
	}
	if existing, err := s.getByExternal(ctx, caller.StoreID, req.ExternalID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return Order{}, err
	}

	var orderID string
	var applied []ledger.Applied
	err := ledger.WithRetry(ctx, s.Log, func() error {
		var err error
		orderID, applied, err = s.placeTx(ctx, caller, req)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a duplicate-submit race; the winner's order is the answer.
			return s.getByExternal(ctx, caller.StoreID, req.ExternalID)
		}
		return Order{}, err
	}

	o, err := s.Get(ctx, auth.Caller{StoreID: caller.StoreID, Role: auth.RoleAdmin}, orderID)
	if err != nil {
		return Order{}, err
	}
	s.idemRecord(ctx, caller.StoreID, req.ExternalID, orderID)
	s.publishOrder(ctx, events.TypeOrderCreated, o)
	s.publishInventory(ctx, applied)
	return o, nil
}

func (s *Service) idemLookup(ctx context.Context, storeID, externalID string) string {
	if s.Redis == nil {
		return ""
	}
	id, err := s.Redis.Get(ctx, redisx.IdemOrderKey(storeID, externalID)).Result()
	if err != nil {
		return ""
	}
	return id
}

func (s *Service) idemRecord(ctx context.Context, storeID, externalID, orderID string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Set(ctx, redisx.IdemOrderKey(storeID, externalID), orderID, redisx.TTLIdempotency).Err(); err != nil {
		s.Log.Warn("idempotency record", zap.Error(err))
	}
}

func (s *Service) idemDrop(ctx context.Context, storeID, externalID string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, redisx.IdemOrderKey(storeID, externalID)).Err(); err != nil {
		s.Log.Warn("idempotency drop", zap.Error(err))
	}
}

func (s *Service) placeTx(ctx context.Context, caller auth.Caller, req PlaceRequest) (string, []ledger.Applied, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var storeStatus, taxRateStr string
	err = tx.QueryRow(ctx, `SELECT status, tax_rate::text FROM stores WHERE id=$1`, caller.StoreID).
		Scan(&storeStatus, &taxRateStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, fmt.Errorf("store: %w", ledger.ErrNotFound)
	}
	if err != nil {
		return "", nil, err
	}
	if storeStatus != "open" {
		return "", nil, fmt.Errorf("%w: store is closed", ledger.ErrValidation)
	}
	taxRate, err := decimal.NewFromString(taxRateStr)
	if err != nil {
		return "", nil, fmt.Errorf("store tax rate: %w", err)
	}

	items := req.Items
	if len(items) == 0 {
		held, expired, err := cart.ItemsTx(ctx, tx, caller.UserID, caller.StoreID)
		if err != nil {
			return "", nil, err
		}
		if expired {
			return "", nil, cart.ErrExpired
		}
		for _, h := range held {
			items = append(items, PlaceItem{ProductID: h.ProductID, Quantity: h.Quantity})
		}
	}
	if len(items) == 0 {
		return "", nil, fmt.Errorf("%w: order has no items", ledger.ErrValidation)
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return "", nil, fmt.Errorf("%w: quantity must be >= 1 for product %s", ledger.ErrValidation, it.ProductID)
		}
	}
	items = coalesceLines(items)

	lines := make([]PricedLine, 0, len(items))
	for _, it := range items {
		var name string
		var price int64
		var discount *int64
		var archived, preorderable bool
		err := tx.QueryRow(ctx, `
			SELECT name, price_cents, discount_price_cents, archived, available_for_preorder
			FROM products WHERE id=$1 AND store_id=$2`,
			it.ProductID, caller.StoreID).Scan(&name, &price, &discount, &archived, &preorderable)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, fmt.Errorf("product %s: %w", it.ProductID, ledger.ErrNotFound)
		}
		if err != nil {
			return "", nil, err
		}
		if archived {
			return "", nil, fmt.Errorf("%w: product %s no longer available", ledger.ErrValidation, it.ProductID)
		}
		if req.Preorder && !preorderable {
			return "", nil, fmt.Errorf("%w: product %s not available for preorder", ledger.ErrValidation, it.ProductID)
		}
		unit := price
		if discount != nil && *discount > 0 && *discount < price {
			unit = *discount
		}
		lines = append(lines, PricedLine{
			ProductID:      it.ProductID,
			ProductName:    name,
			Quantity:       it.Quantity,
			ListPriceCents: price,
			UnitPriceCents: unit,
		})
	}

	totals := ComputeTotals(lines, taxRate)
	orderID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, store_id, user_id, external_id, is_preorder,
			subtotal_cents, tax_cents, discount_cents, final_cents, due_cents)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		orderID, caller.StoreID, caller.UserID, req.ExternalID, req.Preorder,
		totals.SubtotalCents, totals.TaxCents, totals.DiscountCents, totals.FinalCents)
	if err != nil {
		return "", nil, err
	}
	for _, l := range lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price_cents, total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			uuid.NewString(), orderID, l.ProductID, l.ProductName, l.Quantity,
			l.UnitPriceCents, l.UnitPriceCents*int64(l.Quantity))
		if err != nil {
			return "", nil, err
		}
	}

	var applied []ledger.Applied
	if !req.Preorder {
		deltas := make([]ledger.Delta, 0, len(lines))
		for _, l := range lines {
			deltas = append(deltas, ledger.Delta{
				ProductID: l.ProductID,
				StoreID:   caller.StoreID,
				Change:    -l.Quantity,
				Action:    ledger.ActionSale,
				OrderID:   orderID,
				Actor:     caller.Actor(),
			})
		}
		var shortfalls []ledger.Shortfall
		applied, shortfalls, err = ledger.ApplyOrderDeltasTx(ctx, tx, deltas)
		if err != nil {
			return "", nil, err
		}
		if len(shortfalls) > 0 {
			return "", nil, &ShortfallError{Shortfalls: shortfalls}
		}
	}

	// Placement consumes the cart whether or not it sourced the items.
	if err := cart.ClearTx(ctx, tx, caller.UserID, caller.StoreID); err != nil {
		return "", nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", nil, err
	}
	return orderID, applied, nil
}

// Approve moves pending/pending to approved/approved. Regular orders are
// validate-only (placement already committed the stock); preorders apply
// their deltas here, all-or-nothing, and a shortfall leaves the order
// pending. Payment info stamps the payment status and appends a payment.
func (s *Service) Approve(ctx context.Context, caller auth.Caller, orderID string, pay PaymentInfo) (Order, error) {
	if pay.AmountPaidCents < 0 {
		return Order{}, fmt.Errorf("%w: negative payment", ledger.ErrValidation)
	}
	var applied []ledger.Applied
	err := ledger.WithRetry(ctx, s.Log, func() error {
		tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		o, err := lockOrderTx(ctx, tx, caller.StoreID, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending || o.ApprovalStatus != ApprovalPending {
			return &InvalidTransitionError{From: o.Status, Op: "approve"}
		}

		if o.IsPreorder {
			items, err := loadItems(ctx, tx, o.ID)
			if err != nil {
				return err
			}
			deltas := make([]ledger.Delta, 0, len(items))
			for _, it := range items {
				deltas = append(deltas, ledger.Delta{
					ProductID: it.ProductID,
					StoreID:   caller.StoreID,
					Change:    -it.Quantity,
					Action:    ledger.ActionPreorder,
					OrderID:   o.ID,
					Actor:     caller.Cashier,
				})
			}
			var shortfalls []ledger.Shortfall
			applied, shortfalls, err = ledger.ApplyOrderDeltasTx(ctx, tx, deltas)
			if err != nil {
				return err
			}
			if len(shortfalls) > 0 {
				return &ShortfallError{Shortfalls: shortfalls}
			}
		}

		paid := o.PaidCents + pay.AmountPaidCents
		_, err = tx.Exec(ctx, `
			UPDATE orders SET status=$3, approval_status=$4, payment_status=$5,
				cashier=$6, approved_by=$6, approved_at=now(),
				paid_cents=$7, due_cents=GREATEST(final_cents - $7, 0), updated_at=now()
			WHERE id=$1 AND store_id=$2`,
			o.ID, caller.StoreID, string(StatusApproved), string(ApprovalApproved),
			string(PaymentStatusFor(paid, o.FinalCents)), caller.Cashier, paid)
		if err != nil {
			return err
		}
		if pay.AmountPaidCents > 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO payments (id, order_id, amount_cents, method, received_by)
				VALUES ($1,$2,$3,$4,$5)`,
				uuid.NewString(), o.ID, pay.AmountPaidCents, pay.Method, caller.Cashier)
			if err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return Order{}, err
	}

	o, err := s.Get(ctx, caller, orderID)
	if err != nil {
		return Order{}, err
	}
	s.publishOrder(ctx, events.TypeOrderUpdated, o)
	s.publishInventory(ctx, applied)
	return o, nil
}

// Reject closes a pending order as cancelled/rejected. Stock is restored
// only when placement decremented it; the restore is its own audit entry.
func (s *Service) Reject(ctx context.Context, caller auth.Caller, orderID, reason string) (Order, error) {
	var applied []ledger.Applied
	err := ledger.WithRetry(ctx, s.Log, func() error {
		tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		o, err := lockOrderTx(ctx, tx, caller.StoreID, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending || o.ApprovalStatus != ApprovalPending {
			return &InvalidTransitionError{From: o.Status, Op: "reject"}
		}

		if !o.IsPreorder {
			applied, err = reverseOrderDeltasTx(ctx, tx, caller, o)
			if err != nil {
				return err
			}
		}

		notes := o.Notes
		if reason != "" {
			notes = strings.TrimSpace(notes + "\nrejected: " + reason)
		}
		_, err = tx.Exec(ctx, `
			UPDATE orders SET status=$3, approval_status=$4, notes=$5, updated_at=now()
			WHERE id=$1 AND store_id=$2`,
			o.ID, caller.StoreID, string(StatusCancelled), string(ApprovalRejected), notes)
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return Order{}, err
	}

	o, err := s.Get(ctx, caller, orderID)
	if err != nil {
		return Order{}, err
	}
	s.publishOrder(ctx, events.TypeOrderUpdated, o)
	s.publishInventory(ctx, applied)
	return o, nil
}

// Complete marks an approved order fulfilled.
func (s *Service) Complete(ctx context.Context, caller auth.Caller, orderID string) (Order, error) {
	err := ledger.WithRetry(ctx, s.Log, func() error {
		tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		o, err := lockOrderTx(ctx, tx, caller.StoreID, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, StatusCompleted) {
			return &InvalidTransitionError{From: o.Status, Op: "complete"}
		}
		_, err = tx.Exec(ctx, `
			UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND store_id=$2`,
			o.ID, caller.StoreID, string(StatusCompleted))
		if err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return Order{}, err
	}

	o, err := s.Get(ctx, caller, orderID)
	if err != nil {
		return Order{}, err
	}
	s.publishOrder(ctx, events.TypeOrderUpdated, o)
	return o, nil
}

// Delete hard-deletes a still-pending order and reverses its ledger effect.
// Customers may only delete their own orders.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, orderID string) error {
	var applied []ledger.Applied
	var deleted Order
	err := ledger.WithRetry(ctx, s.Log, func() error {
		tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		o, err := lockOrderTx(ctx, tx, caller.StoreID, orderID)
		if err != nil {
			return err
		}
		if !caller.IsAdmin() && o.UserID != caller.UserID {
			return fmt.Errorf("order: %w", ledger.ErrNotFound)
		}
		if o.Status != StatusPending || o.ApprovalStatus != ApprovalPending {
			return &InvalidTransitionError{From: o.Status, Op: "delete"}
		}

		if !o.IsPreorder {
			applied, err = reverseOrderDeltasTx(ctx, tx, caller, o)
			if err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE id=$1 AND store_id=$2`, o.ID, caller.StoreID); err != nil {
			return err
		}
		deleted = o
		return tx.Commit(ctx)
	})
	if err != nil {
		return err
	}

	s.idemDrop(ctx, caller.StoreID, deleted.ExternalID)
	s.publishOrder(ctx, events.TypeOrderDeleted, deleted)
	s.publishInventory(ctx, applied)
	return nil
}

// coalesceLines merges lines naming the same product into one, preserving
// first-seen order. The ledger admits a single (order, product, action)
// entry, so one product must map to exactly one delta.
func coalesceLines(items []PlaceItem) []PlaceItem {
	idx := make(map[string]int, len(items))
	out := make([]PlaceItem, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

// reverseOrderDeltasTx restores the quantities a placement committed. The
// (order, product, cancellation) idempotency context keeps a retried
// reversal from restoring twice.
func reverseOrderDeltasTx(ctx context.Context, tx pgx.Tx, caller auth.Caller, o Order) ([]ledger.Applied, error) {
	items, err := loadItems(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	deltas := make([]ledger.Delta, 0, len(items))
	for _, it := range items {
		deltas = append(deltas, ledger.Delta{
			ProductID: it.ProductID,
			StoreID:   o.StoreID,
			Change:    it.Quantity,
			Action:    ledger.ActionCancellation,
			OrderID:   o.ID,
			Actor:     caller.Actor(),
		})
	}
	applied, shortfalls, err := ledger.ApplyOrderDeltasTx(ctx, tx, deltas)
	if err != nil {
		return nil, err
	}
	if len(shortfalls) > 0 {
		// Restores only add stock; a shortfall here means a bug upstream.
		return nil, fmt.Errorf("unexpected shortfall restoring order %s", o.ID)
	}
	return applied, nil
}

func (s *Service) publishOrder(ctx context.Context, eventType string, o Order) {
	if s.Publisher == nil {
		return
	}
	s.Publisher.Publish(ctx, events.New(eventType, o.StoreID, s.Producer, events.OrderEventPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		ApprovalStatus: string(o.ApprovalStatus),
		PaymentStatus:  string(o.PaymentStatus),
		FinalCents:     o.FinalCents,
		IsPreorder:     o.IsPreorder,
	}))
}

func (s *Service) publishInventory(ctx context.Context, applied []ledger.Applied) {
	for _, a := range applied {
		s.Ledger.PublishChanged(ctx, a)
	}
}
