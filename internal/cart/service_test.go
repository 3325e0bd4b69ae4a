package cart

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type lineKey struct {
	product  [16]byte
	selector string
}

type fakeCartStore struct {
	carts    map[[16]byte]*store.Cart
	byToken  map[string][16]byte
	byUser   map[[16]byte][16]byte
	lines    map[[16]byte]map[lineKey]int32
	products map[[16]byte]store.ProductWithPromo
	vouchers map[string]store.Voucher
	nextID   byte
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{
		carts:    map[[16]byte]*store.Cart{},
		byToken:  map[string][16]byte{},
		byUser:   map[[16]byte][16]byte{},
		lines:    map[[16]byte]map[lineKey]int32{},
		products: map[[16]byte]store.ProductWithPromo{},
		vouchers: map[string]store.Voucher{},
	}
}

func (f *fakeCartStore) GetCartByUser(_ context.Context, userID pgtype.UUID) (store.Cart, error) {
	id, ok := f.byUser[userID.Bytes]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return *f.carts[id], nil
}

func (f *fakeCartStore) GetCartByToken(_ context.Context, token string) (store.Cart, error) {
	id, ok := f.byToken[token]
	if !ok {
		return store.Cart{}, pgx.ErrNoRows
	}
	return *f.carts[id], nil
}

func (f *fakeCartStore) CreateCart(_ context.Context, userID pgtype.UUID, token *string, _ time.Duration) (store.Cart, error) {
	f.nextID++
	var key [16]byte
	key[15] = f.nextID
	c := &store.Cart{ID: pgtype.UUID{Bytes: key, Valid: true}, UserID: userID}
	if token != nil {
		c.Token = pgtype.Text{String: *token, Valid: true}
		f.byToken[*token] = key
	}
	if userID.Valid {
		f.byUser[userID.Bytes] = key
	}
	f.carts[key] = c
	f.lines[key] = map[lineKey]int32{}
	return *c, nil
}

func (f *fakeCartStore) TouchCart(_ context.Context, _ pgtype.UUID, _ time.Duration) error {
	return nil
}

func (f *fakeCartStore) SetCartVoucher(_ context.Context, cartID pgtype.UUID, code *string) error {
	c, ok := f.carts[cartID.Bytes]
	if !ok {
		return pgx.ErrNoRows
	}
	if code == nil {
		c.VoucherCode = pgtype.Text{}
	} else {
		c.VoucherCode = pgtype.Text{String: *code, Valid: true}
	}
	return nil
}

func (f *fakeCartStore) UpsertCartItem(_ context.Context, cartID, productID pgtype.UUID, selector string, qty int32) error {
	f.lines[cartID.Bytes][lineKey{productID.Bytes, selector}] = qty
	return nil
}

func (f *fakeCartStore) AddCartItemQty(_ context.Context, cartID, productID pgtype.UUID, selector string, qty int32) error {
	f.lines[cartID.Bytes][lineKey{productID.Bytes, selector}] += qty
	return nil
}

func (f *fakeCartStore) RemoveCartItem(_ context.Context, cartID, productID pgtype.UUID, selector string) error {
	if _, ok := f.lines[cartID.Bytes][lineKey{productID.Bytes, selector}]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.lines[cartID.Bytes], lineKey{productID.Bytes, selector})
	return nil
}

func (f *fakeCartStore) ClearCart(_ context.Context, cartID pgtype.UUID) error {
	f.lines[cartID.Bytes] = map[lineKey]int32{}
	return nil
}

func (f *fakeCartStore) DeleteCart(_ context.Context, cartID pgtype.UUID) error {
	c := f.carts[cartID.Bytes]
	if c != nil && c.Token.Valid {
		delete(f.byToken, c.Token.String)
	}
	delete(f.carts, cartID.Bytes)
	delete(f.lines, cartID.Bytes)
	return nil
}

func (f *fakeCartStore) ListCartLines(_ context.Context, cartID pgtype.UUID) ([]store.CartLine, error) {
	var out []store.CartLine
	for k, qty := range f.lines[cartID.Bytes] {
		out = append(out, store.CartLine{Selector: k.selector, Qty: qty, Product: f.products[k.product]})
	}
	return out, nil
}

func (f *fakeCartStore) GetProductByID(_ context.Context, id pgtype.UUID) (store.ProductWithPromo, error) {
	p, ok := f.products[id.Bytes]
	if !ok {
		return store.ProductWithPromo{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeCartStore) GetVoucherByCode(_ context.Context, code string) (store.Voucher, error) {
	v, ok := f.vouchers[code]
	if !ok {
		return store.Voucher{}, pgx.ErrNoRows
	}
	return v, nil
}

func (f *fakeCartStore) addProduct(idByte byte, price int64, stock int32, p *store.Promotion) pgtype.UUID {
	var key [16]byte
	key[0] = idByte
	id := pgtype.UUID{Bytes: key, Valid: true}
	f.products[key] = store.ProductWithPromo{
		Product: store.Product{ID: id, Slug: "p", Title: "Producto", Price: price, Stock: stock, Published: true},
		Promo:   p,
	}
	return id
}

func newService(f *fakeCartStore) *Service {
	return &Service{Q: f, TaxBps: 0, Now: func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}}
}

func TestEnsureMintsGuestToken(t *testing.T) {
	f := newFakeCartStore()
	svc := newService(f)

	cart, err := svc.Ensure(context.Background(), Identity{})
	require.NoError(t, err)
	require.True(t, cart.Token.Valid)
	require.NotEmpty(t, cart.Token.String)

	again, err := svc.Ensure(context.Background(), Identity{Token: cart.Token.String})
	require.NoError(t, err)
	require.Equal(t, cart.ID, again.ID)
}

func TestViewPricesLinesWithPromotion(t *testing.T) {
	f := newFakeCartStore()
	pid := f.addProduct(1, 10_000, 100, &store.Promotion{Kind: string(promo.KindBuyNPayM), BuySize: 2, PaidPerSet: 1, Active: true})
	svc := newService(f)

	cart, err := svc.Ensure(context.Background(), Identity{})
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(context.Background(), cart, store.UUIDString(pid), "", 5))

	view, err := svc.View(context.Background(), cart)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, 3, view.Items[0].PayableUnits)
	require.EqualValues(t, 30_000, view.Items[0].LineTotal)
	require.Equal(t, "2x1", view.Items[0].PromoLabel)
	require.EqualValues(t, 30_000, view.Summary.Subtotal)
	require.EqualValues(t, 20_000, view.Summary.PromoDiscount)
	require.EqualValues(t, 30_000, view.Summary.Total)
}

func TestAddItemRejectsInsufficientStock(t *testing.T) {
	f := newFakeCartStore()
	pid := f.addProduct(1, 10_000, 2, nil)
	svc := newService(f)

	cart, err := svc.Ensure(context.Background(), Identity{})
	require.NoError(t, err)
	err = svc.AddItem(context.Background(), cart, store.UUIDString(pid), "", 3)
	require.Error(t, err)
}

func TestApplyVoucherAffectsSummary(t *testing.T) {
	f := newFakeCartStore()
	pid := f.addProduct(1, 10_000, 100, nil)
	f.vouchers["DIEZ"] = store.Voucher{Code: "DIEZ", Kind: "percent", Value: 1_000, Active: true}
	svc := newService(f)

	cart, err := svc.Ensure(context.Background(), Identity{})
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(context.Background(), cart, store.UUIDString(pid), "", 2))

	discount, err := svc.ApplyVoucher(context.Background(), cart, "diez")
	require.NoError(t, err)
	require.EqualValues(t, 2_000, discount)

	cart, err = svc.Ensure(context.Background(), Identity{Token: cart.Token.String})
	require.NoError(t, err)
	view, err := svc.View(context.Background(), cart)
	require.NoError(t, err)
	require.EqualValues(t, 2_000, view.Summary.VoucherDiscount)
	require.EqualValues(t, 18_000, view.Summary.Total)
}

func TestApplyVoucherRejectsInactive(t *testing.T) {
	f := newFakeCartStore()
	pid := f.addProduct(1, 10_000, 100, nil)
	f.vouchers["OFF"] = store.Voucher{Code: "OFF", Kind: "amount", Value: 1_000, Active: false}
	svc := newService(f)

	cart, err := svc.Ensure(context.Background(), Identity{})
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(context.Background(), cart, store.UUIDString(pid), "", 1))

	_, err = svc.ApplyVoucher(context.Background(), cart, "OFF")
	require.Error(t, err)
	view, err := svc.View(context.Background(), cart)
	require.NoError(t, err)
	require.Nil(t, view.Voucher)
}

func TestMergeCombinesQuantitiesAndDropsGuestCart(t *testing.T) {
	f := newFakeCartStore()
	pid := f.addProduct(1, 10_000, 100, nil)
	svc := newService(f)
	ctx := context.Background()

	guest, err := svc.Ensure(ctx, Identity{})
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(ctx, guest, store.UUIDString(pid), "", 2))

	userID := "6fa459ea-ee8a-3ca4-894e-db77e160355e"
	user, err := svc.Ensure(ctx, Identity{UserID: userID})
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(ctx, user, store.UUIDString(pid), "", 1))

	merged, err := svc.Merge(ctx, guest.Token.String, userID)
	require.NoError(t, err)
	require.Equal(t, user.ID, merged.ID)

	view, err := svc.View(ctx, merged)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, 3, view.Items[0].Qty)

	_, err = f.GetCartByToken(ctx, guest.Token.String)
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestAddItemKeepsSelectorsAsSeparateLines(t *testing.T) {
	f := newFakeCartStore()
	pid := f.addProduct(1, 10_000, 100, nil)
	svc := newService(f)
	ctx := context.Background()

	cart, err := svc.Ensure(ctx, Identity{})
	require.NoError(t, err)
	require.NoError(t, svc.AddItem(ctx, cart, store.UUIDString(pid), "rojo", 1))
	require.NoError(t, svc.AddItem(ctx, cart, store.UUIDString(pid), "negro", 2))

	view, err := svc.View(ctx, cart)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	require.EqualValues(t, 30_000, view.Summary.Subtotal)

	require.NoError(t, svc.RemoveItem(ctx, cart, store.UUIDString(pid), "rojo"))
	view, err = svc.View(ctx, cart)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, "negro", view.Items[0].Selector)
}
