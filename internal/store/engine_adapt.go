package store

import "github.com/tienda-labs/backend-tienda/internal/promo"

// Pricing converts a promotions row into the engine's promotion value.
// Rows reach here only through the effective-promotion join, so the
// engine can trust the window has been checked.
func (p *Promotion) Pricing() *promo.Promotion {
	if p == nil {
		return nil
	}
	out := &promo.Promotion{
		Kind:           promo.Kind(p.Kind),
		BuySize:        int(p.BuySize),
		PaidPerSet:     int(p.PaidPerSet),
		FixedUnitPrice: p.FixedUnitPrice,
		Active:         p.Active,
	}
	if p.StartsAt.Valid {
		t := p.StartsAt.Time
		out.StartsAt = &t
	}
	if p.EndsAt.Valid {
		t := p.EndsAt.Time
		out.EndsAt = &t
	}
	return out
}

// PricingLine converts a product and quantity into an engine line item.
// This is the single conversion point between rows and the pricing
// engine; cart, catalog preview, and checkout all go through it so
// their numbers can never disagree.
func (p ProductWithPromo) PricingLine(qty int) promo.LineItem {
	return promo.LineItem{
		UnitPrice: p.Price,
		Qty:       qty,
		Promo:     p.Promo.Pricing(),
	}
}

// PricingLine converts a cart line into an engine line item.
func (l CartLine) PricingLine() promo.LineItem {
	return l.Product.PricingLine(int(l.Qty))
}
