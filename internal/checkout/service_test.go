package checkout

import (
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

func testLine(idByte byte, title string, price int64, qty int32, p *store.Promotion) store.CartLine {
	var key [16]byte
	key[0] = idByte
	return store.CartLine{
		Qty: qty,
		Product: store.ProductWithPromo{
			Product: store.Product{
				ID:        pgtype.UUID{Bytes: key, Valid: true},
				Title:     title,
				Price:     price,
				Published: true,
			},
			Promo: p,
		},
	}
}

func TestSnapshotFreezesPromotionMath(t *testing.T) {
	lines := []store.CartLine{
		testLine(1, "Camiseta", 10_000, 5, &store.Promotion{Kind: string(promo.KindBuyNPayM), BuySize: 2, PaidPerSet: 1, Active: true}),
		testLine(2, "Gorra", 8_000, 4, &store.Promotion{Kind: string(promo.KindFixedPrice), FixedUnitPrice: 7_000, Active: true}),
		testLine(3, "Calcetines", 3_000, 2, nil),
	}
	lines[0].Selector = "negro"

	items, summary := Snapshot(lines, 0, 0, 0)
	require.Len(t, items, 3)

	require.EqualValues(t, 3, items[0].PayableUnits)
	require.EqualValues(t, 30_000, items[0].LineTotal)
	require.Equal(t, "negro", items[0].Selector)
	require.NotNil(t, items[0].PromoLabel)
	require.Equal(t, "2x1", *items[0].PromoLabel)

	require.EqualValues(t, 4, items[1].PayableUnits)
	require.EqualValues(t, 28_000, items[1].LineTotal)

	require.EqualValues(t, 2, items[2].PayableUnits)
	require.EqualValues(t, 6_000, items[2].LineTotal)
	require.Nil(t, items[2].PromoLabel)

	require.EqualValues(t, 64_000, summary.Subtotal)
	require.EqualValues(t, 24_000, summary.PromoDiscount)
	require.EqualValues(t, 64_000, summary.Total)
}

func TestSnapshotAppliesVoucherTaxAndShipping(t *testing.T) {
	lines := []store.CartLine{testLine(1, "Camiseta", 10_000, 2, nil)}

	_, summary := Snapshot(lines, 2_000, 1000, 500)
	require.EqualValues(t, 20_000, summary.Subtotal)
	require.EqualValues(t, 2_000, summary.Voucher)
	require.EqualValues(t, 1_800, summary.Tax)
	require.EqualValues(t, 500, summary.Shipping)
	require.EqualValues(t, 20_300, summary.Total)
}
