package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/promo"
)

func TestComputePlainCart(t *testing.T) {
	items := []promo.LineItem{
		{UnitPrice: 5000, Qty: 2},
		{UnitPrice: 10000, Qty: 1},
	}
	got := Compute(items, 0, 1100, 1500)
	require.Equal(t, Money(20000), got.Subtotal)
	require.Equal(t, Money(0), got.PromoDiscount)
	require.Equal(t, Money(2200), got.Tax)
	require.Equal(t, Money(23700), got.Total)
}

func TestComputeWithPromotions(t *testing.T) {
	twoForOne := &promo.Promotion{Kind: promo.KindBuyNPayM, BuySize: 2, PaidPerSet: 1, Active: true}
	items := []promo.LineItem{
		{UnitPrice: 5000, Qty: 2},
		{UnitPrice: 10000, Qty: 4, Promo: twoForOne},
	}
	got := Compute(items, 0, 0, 0)
	require.Equal(t, Money(30000), got.Subtotal)
	require.Equal(t, Money(20000), got.PromoDiscount)
	require.Equal(t, Money(30000), got.Total)
}

func TestComputeVoucherCappedAtSubtotal(t *testing.T) {
	items := []promo.LineItem{{UnitPrice: 4000, Qty: 1}}
	got := Compute(items, 10000, 1000, 2000)
	require.Equal(t, Money(4000), got.Voucher)
	require.Equal(t, Money(0), got.Tax)
	require.Equal(t, Money(2000), got.Total)
}

func TestComputeSkipsEmptyLines(t *testing.T) {
	items := []promo.LineItem{
		{UnitPrice: 4000, Qty: 0},
		{UnitPrice: 4000, Qty: -3},
	}
	got := Compute(items, 0, 1100, 0)
	require.Equal(t, Summary{}, got)
}
