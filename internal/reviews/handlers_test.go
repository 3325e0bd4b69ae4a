package reviews

import (
	"bytes"
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
	"github.com/tienda-labs/backend-tienda/internal/store"
)

func fixedUUID(b byte) pgtype.UUID {
	var id pgtype.UUID
	id.Bytes[15] = b
	id.Valid = true
	return id
}

type fakeReviewQueries struct {
	products map[[16]byte]store.ProductWithPromo
	reviews  map[[16]byte]store.Review
	nextID   byte
}

func newFakeReviewQueries() *fakeReviewQueries {
	return &fakeReviewQueries{
		products: map[[16]byte]store.ProductWithPromo{},
		reviews:  map[[16]byte]store.Review{},
		nextID:   0x20,
	}
}

func (f *fakeReviewQueries) GetProductByID(_ context.Context, id pgtype.UUID) (store.ProductWithPromo, error) {
	p, ok := f.products[id.Bytes]
	if !ok {
		return store.ProductWithPromo{}, pgx.ErrNoRows
	}
	return p, nil
}

func (f *fakeReviewQueries) UpsertReview(_ context.Context, productID, userID pgtype.UUID, rating int32, comment string) (pgtype.UUID, error) {
	for _, rv := range f.reviews {
		if rv.ProductID == productID && rv.UserID == userID {
			rv.Rating = rating
			rv.Comment = comment
			f.reviews[rv.ID.Bytes] = rv
			return rv.ID, nil
		}
	}
	f.nextID++
	id := fixedUUID(f.nextID)
	f.reviews[id.Bytes] = store.Review{ID: id, ProductID: productID, UserID: userID, Rating: rating, Comment: comment}
	return id, nil
}

func (f *fakeReviewQueries) ListReviewsByProduct(_ context.Context, productID pgtype.UUID, limit, offset int32) ([]store.Review, error) {
	var out []store.Review
	for _, rv := range f.reviews {
		if rv.ProductID == productID {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (f *fakeReviewQueries) ReviewStats(_ context.Context, productID pgtype.UUID) (int64, float64, error) {
	var count int64
	var sum int64
	for _, rv := range f.reviews {
		if rv.ProductID == productID {
			count++
			sum += int64(rv.Rating)
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return count, float64(sum) / float64(count), nil
}

func (f *fakeReviewQueries) GetReview(_ context.Context, id pgtype.UUID) (store.Review, error) {
	rv, ok := f.reviews[id.Bytes]
	if !ok {
		return store.Review{}, pgx.ErrNoRows
	}
	return rv, nil
}

func (f *fakeReviewQueries) DeleteReview(_ context.Context, id pgtype.UUID) error {
	if _, ok := f.reviews[id.Bytes]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.reviews, id.Bytes)
	return nil
}

func doReviewReq(method, path string, body any, userID, role string, params map[string]string, fn http.HandlerFunc) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	ctx := req.Context()
	if userID != "" {
		ctx = common.WithUserID(ctx, userID)
	}
	if role != "" {
		ctx = common.WithRole(ctx, role)
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

func TestCreateReplacesExistingReview(t *testing.T) {
	f := newFakeReviewQueries()
	productID := fixedUUID(1)
	f.products[productID.Bytes] = store.ProductWithPromo{Product: store.Product{ID: productID, Published: true}}
	h := &Handler{Q: f}
	user := store.UUIDString(fixedUUID(2))
	params := map[string]string{"id": store.UUIDString(productID)}

	first := doReviewReq(http.MethodPost, "/products/x/reviews", reviewPayload{Rating: 5, Comment: "excelente"}, user, "", params, h.Create)
	require.Equal(t, http.StatusCreated, first.Code)

	second := doReviewReq(http.MethodPost, "/products/x/reviews", reviewPayload{Rating: 3, Comment: "regular"}, user, "", params, h.Create)
	require.Equal(t, http.StatusCreated, second.Code)

	require.Len(t, f.reviews, 1)
	for _, rv := range f.reviews {
		require.Equal(t, int32(3), rv.Rating)
	}
}

func TestCreateRejectsOutOfRangeRating(t *testing.T) {
	h := &Handler{Q: newFakeReviewQueries()}
	rec := doReviewReq(http.MethodPost, "/products/x/reviews", reviewPayload{Rating: 6},
		store.UUIDString(fixedUUID(2)), "", map[string]string{"id": store.UUIDString(fixedUUID(1))}, h.Create)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListIncludesStats(t *testing.T) {
	f := newFakeReviewQueries()
	productID := fixedUUID(1)
	f.products[productID.Bytes] = store.ProductWithPromo{Product: store.Product{ID: productID}}
	_, _ = f.UpsertReview(context.Background(), productID, fixedUUID(2), 5, "")
	_, _ = f.UpsertReview(context.Background(), productID, fixedUUID(3), 3, "")
	h := &Handler{Q: f}

	rec := doReviewReq(http.MethodGet, "/products/x/reviews", nil, "", "",
		map[string]string{"id": store.UUIDString(productID)}, h.List)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Items         []reviewView `json:"items"`
			Count         int64        `json:"count"`
			AverageRating float64      `json:"averageRating"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Items, 2)
	require.Equal(t, int64(2), resp.Data.Count)
	require.InDelta(t, 4.0, resp.Data.AverageRating, 0.001)
}

func TestDeleteForbiddenForOtherUser(t *testing.T) {
	f := newFakeReviewQueries()
	productID := fixedUUID(1)
	reviewID, _ := f.UpsertReview(context.Background(), productID, fixedUUID(2), 4, "")
	h := &Handler{Q: f}

	rec := doReviewReq(http.MethodDelete, "/reviews/x", nil, store.UUIDString(fixedUUID(3)), "customer",
		map[string]string{"id": store.UUIDString(reviewID)}, h.Delete)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteAllowedForStaff(t *testing.T) {
	f := newFakeReviewQueries()
	productID := fixedUUID(1)
	reviewID, _ := f.UpsertReview(context.Background(), productID, fixedUUID(2), 4, "")
	h := &Handler{Q: f}

	rec := doReviewReq(http.MethodDelete, "/reviews/x", nil, store.UUIDString(fixedUUID(3)), "staff",
		map[string]string{"id": store.UUIDString(reviewID)}, h.Delete)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, f.reviews)
}
