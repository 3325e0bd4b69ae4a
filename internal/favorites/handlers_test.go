package favorites

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

func fixedUUID(b byte) pgtype.UUID {
	var id pgtype.UUID
	id.Bytes[15] = b
	id.Valid = true
	return id
}

type favKey struct {
	user    [16]byte
	product [16]byte
}

type fakeFavoriteQueries struct {
	products  map[[16]byte]store.ProductWithPromo
	favorites map[favKey]bool
}

func newFakeFavoriteQueries() *fakeFavoriteQueries {
	return &fakeFavoriteQueries{
		products:  map[[16]byte]store.ProductWithPromo{},
		favorites: map[favKey]bool{},
	}
}

func (f *fakeFavoriteQueries) GetProductByID(_ context.Context, id pgtype.UUID) (store.ProductWithPromo, error) {
	p, ok := f.products[id.Bytes]
	if !ok {
		return store.ProductWithPromo{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeFavoriteQueries) AddFavorite(_ context.Context, userID, productID pgtype.UUID) error {
	f.favorites[favKey{userID.Bytes, productID.Bytes}] = true
	return nil
}

func (f *fakeFavoriteQueries) RemoveFavorite(_ context.Context, userID, productID pgtype.UUID) error {
	key := favKey{userID.Bytes, productID.Bytes}
	if !f.favorites[key] {
		return pgx.ErrNoRows
	}
	delete(f.favorites, key)
	return nil
}

func (f *fakeFavoriteQueries) IsFavorite(_ context.Context, userID, productID pgtype.UUID) (bool, error) {
	return f.favorites[favKey{userID.Bytes, productID.Bytes}], nil
}

func (f *fakeFavoriteQueries) ListFavorites(_ context.Context, userID pgtype.UUID) ([]store.ProductWithPromo, error) {
	var out []store.ProductWithPromo
	for key := range f.favorites {
		if key.user == userID.Bytes {
			out = append(out, f.products[key.product])
		}
	}
	return out, nil
}

func doFavoriteReq(method, path string, userID string, params map[string]string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	ctx := req.Context()
	if userID != "" {
		ctx = common.WithUserID(ctx, userID)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func TestAddThenListShowsPromoLabel(t *testing.T) {
	f := newFakeFavoriteQueries()
	productID := fixedUUID(1)
	f.products[productID.Bytes] = store.ProductWithPromo{
		Product: store.Product{ID: productID, Slug: "camiseta", Title: "Camiseta", Price: 10000, Stock: 5},
		Promo: &store.Promotion{
			Kind:       string(promo.KindBuyNPayM),
			BuySize:    2,
			PaidPerSet: 1,
			Active:     true,
		},
	}
	h := &Handler{Q: f}
	user := store.UUIDString(fixedUUID(2))
	params := map[string]string{"productId": store.UUIDString(productID)}

	rec := doFavoriteReq(http.MethodPut, "/favorites/x", user, params, h.Add)
	require.Equal(t, http.StatusNoContent, rec.Code)

	list := doFavoriteReq(http.MethodGet, "/favorites", user, nil, h.List)
	require.Equal(t, http.StatusOK, list.Code)

	var resp struct {
		Data []favoriteView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "camiseta", resp.Data[0].Slug)
	require.Equal(t, "2x1", resp.Data[0].PromoLabel)
}

func TestCheckReflectsFavoriteState(t *testing.T) {
	f := newFakeFavoriteQueries()
	productID := fixedUUID(1)
	f.products[productID.Bytes] = store.ProductWithPromo{
		Product: store.Product{ID: productID, Slug: "gorra", Title: "Gorra", Price: 8000, Stock: 3},
	}
	h := &Handler{Q: f}
	user := store.UUIDString(fixedUUID(2))
	params := map[string]string{"productId": store.UUIDString(productID)}

	rec := doFavoriteReq(http.MethodGet, "/favorites/x", user, params, h.Check)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"favorited":false`)

	rec = doFavoriteReq(http.MethodPut, "/favorites/x", user, params, h.Add)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doFavoriteReq(http.MethodGet, "/favorites/x", user, params, h.Check)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"favorited":true`)
}

func TestAddUnknownProduct(t *testing.T) {
	h := &Handler{Q: newFakeFavoriteQueries()}
	rec := doFavoriteReq(http.MethodPut, "/favorites/x", store.UUIDString(fixedUUID(2)),
		map[string]string{"productId": store.UUIDString(fixedUUID(9))}, h.Add)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveAbsentFavorite(t *testing.T) {
	h := &Handler{Q: newFakeFavoriteQueries()}
	rec := doFavoriteReq(http.MethodDelete, "/favorites/x", store.UUIDString(fixedUUID(2)),
		map[string]string{"productId": store.UUIDString(fixedUUID(1))}, h.Remove)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRequiresAuth(t *testing.T) {
	h := &Handler{Q: newFakeFavoriteQueries()}
	rec := doFavoriteReq(http.MethodGet, "/favorites", "", nil, h.List)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
