package promo

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Label derives the storefront badge for the promotion against a given
// full unit price.
//
// Buy-N-pay-M promotions are labeled by their set shape ("2x1", "3x2").
// Fixed-price promotions are labeled by the discount percentage,
// rounded to the nearest whole percent ("-25%"). When the full price is
// zero the percentage is undefined and, likewise, when the override is
// not actually cheaper there is nothing to advertise; both cases yield
// an empty label and the storefront renders no badge.
func (p *Promotion) Label(unitPrice Money) string {
	if !p.wellFormed() {
		return ""
	}
	switch p.Kind {
	case KindBuyNPayM:
		return fmt.Sprintf("%dx%d", p.BuySize, p.PaidPerSet)
	case KindFixedPrice:
		if unitPrice <= 0 {
			return ""
		}
		ratio := decimal.New(p.FixedUnitPrice, 0).Div(decimal.New(unitPrice, 0))
		pct := decimal.NewFromInt(1).Sub(ratio).Mul(decimal.NewFromInt(100)).Round(0)
		if !pct.IsPositive() {
			return ""
		}
		return fmt.Sprintf("-%s%%", pct.String())
	}
	return ""
}

// FormatAmount renders a minor-unit amount as a fixed two-decimal
// string for receipts and notification templates.
func FormatAmount(m Money) string {
	return decimal.New(m, -2).StringFixed(2)
}
