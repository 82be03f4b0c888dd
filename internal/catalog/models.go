package catalog

import "time"

type Product struct {
	ID                   string    `json:"id"`
	StoreID              string    `json:"store_id"`
	SKU                  *string   `json:"sku,omitempty"`
	Name                 string    `json:"name"`
	PriceCents           int64     `json:"price_cents"`
	DiscountPriceCents   *int64    `json:"discount_price_cents,omitempty"`
	CostCents            *int64    `json:"cost_cents,omitempty"`
	Quantity             int       `json:"quantity"`
	AvailableForPreorder bool      `json:"available_for_preorder"`
	Archived             bool      `json:"archived"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// EffectivePriceCents is the price orders charge: the discount price when
// one is set, the list price otherwise.
func (p Product) EffectivePriceCents() int64 {
	if p.DiscountPriceCents != nil && *p.DiscountPriceCents > 0 && *p.DiscountPriceCents < p.PriceCents {
		return *p.DiscountPriceCents
	}
	return p.PriceCents
}

const (
	StoreOpen   = "open"
	StoreClosed = "closed"
)

type Store struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	TaxRate   string    `json:"tax_rate"` // decimal string, e.g. "0.10"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
