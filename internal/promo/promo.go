// Package promo implements the promotion pricing engine: given a line's
// unit price, quantity, and the promotion attached to it (if any), it
// computes the payable amount and the number of units actually charged.
// Every price shown or persisted by the platform (cart preview, product
// detail, checkout, order totals) goes through this package so the math
// can never drift between call sites.
package promo

import "time"

// Money represents a monetary value stored in minor units.
type Money = int64

// Kind discriminates the supported promotion mechanics.
type Kind string

const (
	// KindBuyNPayM charges PaidPerSet units for every complete set of
	// BuySize units ("2x1", "3x2", ...). Units beyond the last complete
	// set are charged at full price.
	KindBuyNPayM Kind = "buy_n_pay_m"
	// KindFixedPrice charges every unit at a flat override price.
	KindFixedPrice Kind = "fixed_price"
)

// Promotion describes a single promotion attached to a product. At most
// one promotion applies per line item; stacking is not supported.
//
// PaidPerSet counts the units charged within one complete set, not the
// free ones: BuySize=3, PaidPerSet=2 is the classic "3x2".
type Promotion struct {
	Kind           Kind
	BuySize        int
	PaidPerSet     int
	FixedUnitPrice Money

	// Eligibility window. Resolved by the catalog layer before a
	// promotion reaches the engine; the pricing operations below never
	// consult these fields.
	Active   bool
	StartsAt *time.Time
	EndsAt   *time.Time
}

// LineItem is the engine's pricing input: one cart or order line.
// Variant and colour selectors are identity concerns owned by the cart
// and are irrelevant here.
type LineItem struct {
	UnitPrice Money
	Qty       int
	Promo     *Promotion
}

// EffectiveAt reports whether the promotion may be applied at the given
// instant: it must be active and, when a window is set, now must fall
// within [StartsAt, EndsAt] inclusive. Callers filter with this before
// constructing LineItems; the engine trusts Promo as already effective.
func EffectiveAt(p *Promotion, now time.Time) bool {
	if p == nil || !p.Active {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	return true
}

// wellFormed reports whether the promotion parameters are usable for
// pricing. Malformed promotions degrade to no-promotion rather than
// corrupting a user-facing total.
func (p *Promotion) wellFormed() bool {
	if p == nil {
		return false
	}
	switch p.Kind {
	case KindBuyNPayM:
		return p.BuySize >= 2 && p.PaidPerSet >= 0 && p.PaidPerSet <= p.BuySize
	case KindFixedPrice:
		return p.FixedUnitPrice >= 0
	}
	return false
}

// PayableUnits returns the number of units actually charged for the
// line. It equals Qty for promotion-free and fixed-price lines (fixed
// price charges every unit, just at an overridden rate). For
// buy-N-pay-M below the set threshold the promotion is not yet
// unlocked and every unit is charged; at or above it, only complete
// sets are discounted and the remainder is charged in full.
func (li LineItem) PayableUnits() int {
	qty := li.Qty
	if qty <= 0 {
		return 0
	}
	p := li.Promo
	if !p.wellFormed() || p.Kind != KindBuyNPayM {
		return qty
	}
	if qty < p.BuySize {
		return qty
	}
	fullSets := qty / p.BuySize
	remainder := qty % p.BuySize
	return fullSets*p.PaidPerSet + remainder
}

// Total computes the payable amount for the line in minor units.
// Negative prices and quantities are clamped to zero: a wrong upstream
// value must never yield a negative or panicking total on a checkout
// path.
func (li LineItem) Total() Money {
	qty := li.Qty
	if qty <= 0 {
		return 0
	}
	unit := li.UnitPrice
	if unit < 0 {
		unit = 0
	}
	p := li.Promo
	if !p.wellFormed() {
		return unit * Money(qty)
	}
	switch p.Kind {
	case KindFixedPrice:
		return p.FixedUnitPrice * Money(qty)
	case KindBuyNPayM:
		return unit * Money(li.PayableUnits())
	}
	return unit * Money(qty)
}

// CartTotal sums the line totals. Addition over minor units is
// commutative and associative, so iteration order never affects the
// result; display ordering of lines is the cart's concern.
func CartTotal(items []LineItem) Money {
	var total Money
	for _, li := range items {
		total += li.Total()
	}
	return total
}
