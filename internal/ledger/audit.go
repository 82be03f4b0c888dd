package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func insertAuditTx(ctx context.Context, tx pgx.Tx, e Entry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_audit
			(id, store_id, product_id, action, quantity_change,
			 previous_quantity, new_quantity, order_id, actor, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		uuid.NewString(), e.StoreID, e.ProductID, string(e.Action), e.QuantityChange,
		e.PreviousQuantity, e.NewQuantity, e.OrderID, e.Actor, e.Reason)
	return err
}

// Filter narrows the audit read side. Zero values mean "any".
type Filter struct {
	ProductID string
	Action    Action
	From      time.Time
	To        time.Time
	Search    string // matched against actor and reason
	Page      int    // 1-based
	PerPage   int
}

// buildAuditWhere returns the WHERE clause and its args. Split out so the
// query shape is testable without a database.
func buildAuditWhere(storeID string, f Filter) (string, []any) {
	conds := []string{"store_id = $1"}
	args := []any{storeID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.Action != "" {
		add("action = $%d", string(f.Action))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(actor ILIKE $%d OR reason ILIKE $%d)", n, n))
	}
	return strings.Join(conds, " AND "), args
}

// QueryAudit reads the trail newest-first with a total for paging.
func (l *Ledger) QueryAudit(ctx context.Context, storeID string, f Filter) ([]Entry, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 500 {
		f.PerPage = 50
	}
	where, args := buildAuditWhere(storeID, f)

	var total int
	if err := l.DB.QueryRow(ctx, `SELECT COUNT(*) FROM stock_audit WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	q := fmt.Sprintf(`
		SELECT id, store_id, product_id, action, quantity_change,
		       previous_quantity, new_quantity, order_id, actor, reason, created_at
		FROM stock_audit WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := l.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var action string
		if err := rows.Scan(&e.ID, &e.StoreID, &e.ProductID, &action, &e.QuantityChange,
			&e.PreviousQuantity, &e.NewQuantity, &e.OrderID, &e.Actor, &e.Reason, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Replay folds audit entries (in creation order) over an initial quantity.
// The result must equal the product's current quantity.
func Replay(initial int, entries []Entry) int {
	q := initial
	for _, e := range entries {
		q += e.QuantityChange
	}
	return q
}
