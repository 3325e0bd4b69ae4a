package promo

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buyNPayM(buy, paid int) *Promotion {
	return &Promotion{Kind: KindBuyNPayM, BuySize: buy, PaidPerSet: paid, Active: true}
}

func fixedPrice(p Money) *Promotion {
	return &Promotion{Kind: KindFixedPrice, FixedUnitPrice: p, Active: true}
}

func TestLineTotalScenarios(t *testing.T) {
	cases := []struct {
		name        string
		item        LineItem
		wantPayable int
		wantTotal   Money
	}{
		{
			name:        "no promotion",
			item:        LineItem{UnitPrice: 10000, Qty: 3},
			wantPayable: 3,
			wantTotal:   30000,
		},
		{
			name:        "two for one with remainder",
			item:        LineItem{UnitPrice: 10000, Qty: 5, Promo: buyNPayM(2, 1)},
			wantPayable: 3,
			wantTotal:   30000,
		},
		{
			name:        "three for two with remainder",
			item:        LineItem{UnitPrice: 10000, Qty: 7, Promo: buyNPayM(3, 2)},
			wantPayable: 5,
			wantTotal:   50000,
		},
		{
			name:        "three for one exact set",
			item:        LineItem{UnitPrice: 10000, Qty: 3, Promo: buyNPayM(3, 1)},
			wantPayable: 1,
			wantTotal:   10000,
		},
		{
			name:        "below set threshold charges full price",
			item:        LineItem{UnitPrice: 10000, Qty: 1, Promo: buyNPayM(2, 1)},
			wantPayable: 1,
			wantTotal:   10000,
		},
		{
			name:        "fixed price overrides unit price",
			item:        LineItem{UnitPrice: 10000, Qty: 4, Promo: fixedPrice(7000)},
			wantPayable: 4,
			wantTotal:   28000,
		},
		{
			name:        "zero quantity contributes nothing",
			item:        LineItem{UnitPrice: 10000, Qty: 0, Promo: buyNPayM(2, 1)},
			wantPayable: 0,
			wantTotal:   0,
		},
		{
			name:        "paid equals set size degenerates to full price",
			item:        LineItem{UnitPrice: 10000, Qty: 6, Promo: buyNPayM(3, 3)},
			wantPayable: 6,
			wantTotal:   60000,
		},
		{
			name:        "everything free within sets",
			item:        LineItem{UnitPrice: 10000, Qty: 5, Promo: buyNPayM(2, 0)},
			wantPayable: 1,
			wantTotal:   10000,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.wantPayable, tc.item.PayableUnits())
			require.Equal(t, tc.wantTotal, tc.item.Total())
		})
	}
}

func TestLineTotalClampsInvalidInput(t *testing.T) {
	require.Equal(t, Money(0), LineItem{UnitPrice: -500, Qty: 3}.Total())
	require.Equal(t, Money(0), LineItem{UnitPrice: 10000, Qty: -2}.Total())
	require.Equal(t, 0, LineItem{UnitPrice: 10000, Qty: -2}.PayableUnits())

	// Malformed promotions degrade to full price rather than corrupting
	// the total.
	malformed := &Promotion{Kind: KindBuyNPayM, BuySize: 2, PaidPerSet: 3, Active: true}
	require.Equal(t, Money(40000), LineItem{UnitPrice: 10000, Qty: 4, Promo: malformed}.Total())
	require.Equal(t, 4, LineItem{UnitPrice: 10000, Qty: 4, Promo: malformed}.PayableUnits())

	tooSmall := &Promotion{Kind: KindBuyNPayM, BuySize: 1, PaidPerSet: 1, Active: true}
	require.Equal(t, Money(40000), LineItem{UnitPrice: 10000, Qty: 4, Promo: tooSmall}.Total())

	negFixed := &Promotion{Kind: KindFixedPrice, FixedUnitPrice: -100, Active: true}
	require.Equal(t, Money(40000), LineItem{UnitPrice: 10000, Qty: 4, Promo: negFixed}.Total())
}

func TestLineTotalMonotonicInQuantity(t *testing.T) {
	promos := []*Promotion{nil, buyNPayM(2, 1), buyNPayM(3, 2), fixedPrice(7000)}
	for _, p := range promos {
		prev := Money(0)
		for qty := 0; qty <= 20; qty++ {
			total := LineItem{UnitPrice: 10000, Qty: qty, Promo: p}.Total()
			require.GreaterOrEqual(t, total, prev, "qty=%d", qty)
			prev = total
		}
	}
}

func TestPayableUnitsSetMath(t *testing.T) {
	// Exact multiples charge fullSets*paid; remainders are charged in
	// full on top, never proportionally discounted.
	for k := 1; k <= 5; k++ {
		li := LineItem{UnitPrice: 100, Qty: k * 3, Promo: buyNPayM(3, 2)}
		require.Equal(t, k*2, li.PayableUnits())
		for r := 1; r < 3; r++ {
			li := LineItem{UnitPrice: 100, Qty: k*3 + r, Promo: buyNPayM(3, 2)}
			require.Equal(t, k*2+r, li.PayableUnits())
		}
	}
}

func TestCartTotal(t *testing.T) {
	items := []LineItem{
		{UnitPrice: 5000, Qty: 2},
		{UnitPrice: 10000, Qty: 4, Promo: buyNPayM(2, 1)},
	}
	require.Equal(t, Money(30000), CartTotal(items))
	require.Equal(t, Money(0), CartTotal(nil))
}

func TestCartTotalPermutationInvariant(t *testing.T) {
	items := []LineItem{
		{UnitPrice: 5000, Qty: 2},
		{UnitPrice: 10000, Qty: 4, Promo: buyNPayM(2, 1)},
		{UnitPrice: 9900, Qty: 7, Promo: buyNPayM(3, 2)},
		{UnitPrice: 12500, Qty: 3, Promo: fixedPrice(9000)},
	}
	want := CartTotal(items)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]LineItem(nil), items...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		require.Equal(t, want, CartTotal(shuffled))
	}
}

func TestEffectiveAt(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-24 * time.Hour)
	after := now.Add(24 * time.Hour)

	cases := []struct {
		name string
		p    *Promotion
		want bool
	}{
		{"nil promotion", nil, false},
		{"inactive", &Promotion{Kind: KindFixedPrice, Active: false}, false},
		{"active without window", buyNPayM(2, 1), true},
		{"inside window", &Promotion{Kind: KindFixedPrice, Active: true, StartsAt: &before, EndsAt: &after}, true},
		{"not started", &Promotion{Kind: KindFixedPrice, Active: true, StartsAt: &after}, false},
		{"already ended", &Promotion{Kind: KindFixedPrice, Active: true, EndsAt: &before}, false},
		{"boundary is inclusive", &Promotion{Kind: KindFixedPrice, Active: true, StartsAt: &now, EndsAt: &now}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, EffectiveAt(tc.p, now))
		})
	}
}

func TestLabel(t *testing.T) {
	cases := []struct {
		name      string
		p         *Promotion
		unitPrice Money
		want      string
	}{
		{"two for one", buyNPayM(2, 1), 10000, "2x1"},
		{"three for one", buyNPayM(3, 1), 10000, "3x1"},
		{"three for two", buyNPayM(3, 2), 10000, "3x2"},
		{"fixed price quarter off", fixedPrice(7500), 10000, "-25%"},
		{"fixed price rounds to nearest percent", fixedPrice(6666), 10000, "-33%"},
		{"fixed price on zero unit price omits percent", fixedPrice(7500), 0, ""},
		{"fixed price above unit price omits percent", fixedPrice(12000), 10000, ""},
		{"nil promotion", nil, 10000, ""},
		{"malformed promotion", &Promotion{Kind: KindBuyNPayM, BuySize: 1}, 10000, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.p.Label(tc.unitPrice))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "100.00", FormatAmount(10000))
	require.Equal(t, "0.50", FormatAmount(50))
	require.Equal(t, "0.00", FormatAmount(0))
}
