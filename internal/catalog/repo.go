package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wargapos/wargapos/internal/ledger"
)

type Repo struct{ DB *pgxpool.Pool }

const productCols = `id, store_id, sku, name, price_cents, discount_price_cents,
	cost_cents, quantity, available_for_preorder, archived, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.PriceCents, &p.DiscountPriceCents,
		&p.CostCents, &p.Quantity, &p.AvailableForPreorder, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("product: %w", ledger.ErrNotFound)
	}
	return p, err
}

func (r *Repo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.StoreID == "" || p.Name == "" || p.PriceCents < 1 || p.Quantity < 0 {
		return Product{}, fmt.Errorf("%w: store, name and positive price required", ledger.ErrValidation)
	}
	if p.SKU != nil {
		sku := strings.ToUpper(strings.TrimSpace(*p.SKU))
		if sku == "" {
			p.SKU = nil
		} else {
			p.SKU = &sku
		}
	}
	p.ID = uuid.NewString()
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products (id, store_id, sku, name, price_cents, discount_price_cents,
			cost_cents, quantity, available_for_preorder)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+productCols,
		p.ID, p.StoreID, p.SKU, p.Name, p.PriceCents, p.DiscountPriceCents,
		p.CostCents, p.Quantity, p.AvailableForPreorder)
	return scanProduct(row)
}

func (r *Repo) GetProduct(ctx context.Context, storeID, id string) (Product, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 AND store_id=$2`, id, storeID)
	return scanProduct(row)
}

// ListProducts returns the storefront view by default; admins see archived
// rows too (soft-exclusion, never deletion, since orders reference history).
func (r *Repo) ListProducts(ctx context.Context, storeID string, includeArchived bool) ([]Product, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE store_id=$1`
	if !includeArchived {
		q += ` AND archived = FALSE`
	}
	q += ` ORDER BY name`
	rows, err := r.DB.Query(ctx, q, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ArchiveProduct(ctx context.Context, storeID, id string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET archived = TRUE, updated_at = now()
		WHERE id=$1 AND store_id=$2`, id, storeID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product: %w", ledger.ErrNotFound)
	}
	return nil
}

func (r *Repo) GetStore(ctx context.Context, id string) (Store, error) {
	var s Store
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, status, tax_rate::text, created_at, updated_at
		FROM stores WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.Status, &s.TaxRate, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, fmt.Errorf("store: %w", ledger.ErrNotFound)
	}
	return s, err
}

func (r *Repo) SetStoreStatus(ctx context.Context, id, status string) (Store, error) {
	if status != StoreOpen && status != StoreClosed {
		return Store{}, fmt.Errorf("%w: status must be open or closed", ledger.ErrValidation)
	}
	var s Store
	err := r.DB.QueryRow(ctx, `
		UPDATE stores SET status=$2, updated_at=now()
		WHERE id=$1
		RETURNING id, name, status, tax_rate::text, created_at, updated_at`, id, status).
		Scan(&s.ID, &s.Name, &s.Status, &s.TaxRate, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, fmt.Errorf("store: %w", ledger.ErrNotFound)
	}
	return s, err
}
