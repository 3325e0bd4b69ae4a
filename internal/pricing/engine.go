// Package pricing aggregates promotion-aware line totals into a cart
// summary: subtotal, voucher discount, tax, and shipping. Per-line
// promotion math lives in promo; this package only composes it.
package pricing

import "github.com/tienda-labs/backend-tienda/internal/promo"

// Money represents a monetary value stored in minor units.
type Money = promo.Money

// Summary aggregates computed pricing components.
//
// Subtotal already reflects line-level promotions; PromoDiscount reports
// how much those promotions shaved off the full-price subtotal so
// receipts can itemize it.
type Summary struct {
	Subtotal      Money
	PromoDiscount Money
	Voucher       Money
	Tax           Money
	Shipping      Money
	Total         Money
}

// Compute calculates cart totals given the provided inputs. The voucher
// amount is capped at the promoted subtotal so a generous voucher never
// drives the total negative.
func Compute(items []promo.LineItem, voucher Money, taxBps int, shipping Money) Summary {
	var subtotal, fullPrice Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += it.Total()
		unit := it.UnitPrice
		if unit < 0 {
			unit = 0
		}
		fullPrice += unit * Money(it.Qty)
	}
	promoDiscount := fullPrice - subtotal
	if promoDiscount < 0 {
		promoDiscount = 0
	}
	if voucher > subtotal {
		voucher = subtotal
	}
	taxable := subtotal - voucher
	if taxable < 0 {
		taxable = 0
	}
	tax := (taxable * Money(taxBps)) / 10000
	total := taxable + tax + shipping
	return Summary{
		Subtotal:      subtotal,
		PromoDiscount: promoDiscount,
		Voucher:       voucher,
		Tax:           tax,
		Shipping:      shipping,
		Total:         total,
	}
}
