package voucher

import (
	"errors"
	"strings"
	"time"

	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

var (
	// ErrNotEligible is returned when the voucher cannot be applied to the provided context.
	ErrNotEligible = errors.New("voucher not eligible")
	// ErrVoucherInactive is returned when the voucher is disabled or its window has not opened.
	ErrVoucherInactive = errors.New("voucher not active")
	// ErrVoucherExpired is returned when the voucher window has already closed.
	ErrVoucherExpired = errors.New("voucher expired")
	// ErrMinimumSpendUnmet indicates the cart subtotal did not meet the voucher requirement.
	ErrMinimumSpendUnmet = errors.New("voucher minimum spend not met")
)

// Voucher kinds. Percent values are stored in basis points.
const (
	KindAmount  = "amount"
	KindPercent = "percent"
)

// Rule captures the runtime constraints of a voucher, detached from storage.
type Rule struct {
	Code        string
	Kind        string
	Value       int64
	MinSubtotal promo.Money
	MaxDiscount promo.Money
	Active      bool
	StartsAt    *time.Time
	EndsAt      *time.Time
}

// RuleFromRow converts a stored voucher into an evaluatable rule.
func RuleFromRow(v store.Voucher) Rule {
	r := Rule{
		Code:        v.Code,
		Kind:        v.Kind,
		Value:       v.Value,
		MinSubtotal: v.MinSubtotal,
		MaxDiscount: v.MaxDiscount,
		Active:      v.Active,
	}
	if v.StartsAt.Valid {
		t := v.StartsAt.Time
		r.StartsAt = &t
	}
	if v.EndsAt.Valid {
		t := v.EndsAt.Time
		r.EndsAt = &t
	}
	return r
}

// Validate ensures the rule can be applied at the provided instant and cart subtotal.
// Subtotal is the promotion-adjusted cart subtotal, which is the amount the
// voucher discounts against.
func (r Rule) Validate(now time.Time, subtotal promo.Money) error {
	if !r.Active {
		return ErrVoucherInactive
	}
	if r.StartsAt != nil && now.Before(*r.StartsAt) {
		return ErrVoucherInactive
	}
	if r.EndsAt != nil && now.After(*r.EndsAt) {
		return ErrVoucherExpired
	}
	if subtotal < r.MinSubtotal {
		return ErrMinimumSpendUnmet
	}
	return nil
}

// Discount computes the amount the rule knocks off the given subtotal.
// The result never exceeds the subtotal and respects MaxDiscount when set.
func (r Rule) Discount(subtotal promo.Money) promo.Money {
	if subtotal <= 0 {
		return 0
	}
	discount := r.Value
	if strings.EqualFold(r.Kind, KindPercent) {
		if r.Value <= 0 {
			return 0
		}
		discount = (subtotal * r.Value) / 10000
	}
	if r.MaxDiscount > 0 && discount > r.MaxDiscount {
		discount = r.MaxDiscount
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// Evaluate validates the rule and returns the discount for the subtotal.
func Evaluate(v store.Voucher, subtotal promo.Money, now time.Time) (promo.Money, error) {
	rule := RuleFromRow(v)
	if err := rule.Validate(now, subtotal); err != nil {
		return 0, err
	}
	return rule.Discount(subtotal), nil
}
