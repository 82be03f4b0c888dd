package orders

import (
	"github.com/shopspring/decimal"
)

// PricedLine is a line item priced from the current product row at
// placement time; the cart snapshot is never trusted for money.
type PricedLine struct {
	ProductID      string
	ProductName    string
	Quantity       int
	ListPriceCents int64
	UnitPriceCents int64 // discount price when one is set
}

type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	DiscountCents int64
	FinalCents    int64
}

// ComputeTotals prices an order: subtotal at list price, discount is the
// sum of per-line savings, tax applies to the discounted amount and rounds
// half-up to a cent.
func ComputeTotals(lines []PricedLine, taxRate decimal.Decimal) Totals {
	var t Totals
	for _, l := range lines {
		qty := int64(l.Quantity)
		t.SubtotalCents += l.ListPriceCents * qty
		t.DiscountCents += (l.ListPriceCents - l.UnitPriceCents) * qty
	}
	net := t.SubtotalCents - t.DiscountCents
	t.TaxCents = decimal.NewFromInt(net).Mul(taxRate).Round(0).IntPart()
	t.FinalCents = net + t.TaxCents
	return t
}

// PaymentStatusFor derives the payment state from what has been paid so
// far. Overdue is only ever set by hand; no scheduler ages invoices here.
func PaymentStatusFor(paidCents, finalCents int64) PaymentStatus {
	switch {
	case finalCents > 0 && paidCents >= finalCents:
		return PaymentPaid
	case paidCents > 0:
		return PaymentPartial
	default:
		return PaymentPending
	}
}
