package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/order"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type fakeWebhookQueries struct {
	ord       *store.Order
	processed map[string]bool
}

func (f *fakeWebhookQueries) GetOrder(_ context.Context, id pgtype.UUID) (store.Order, error) {
	if f.ord == nil || f.ord.ID != id {
		return store.Order{}, pgx.ErrNoRows
	}
	return *f.ord, nil
}

func (f *fakeWebhookQueries) TransitionOrderStatus(_ context.Context, id pgtype.UUID, from, to string) error {
	if f.ord == nil || f.ord.ID != id || f.ord.Status != from {
		return pgx.ErrNoRows
	}
	f.ord.Status = to
	return nil
}

func (f *fakeWebhookQueries) MarkWebhookProcessed(_ context.Context, provider, externalID string) (bool, error) {
	key := provider + ":" + externalID
	if f.processed[key] {
		return false, nil
	}
	f.processed[key] = true
	return true, nil
}

const testSecret = "super-secret"

func newWebhookFixture() (*fakeWebhookQueries, Webhook, pgtype.UUID) {
	var key [16]byte
	key[15] = 1
	oid := pgtype.UUID{Bytes: key, Valid: true}
	f := &fakeWebhookQueries{
		ord:       &store.Order{ID: oid, Status: order.StatusPendingPayment, Total: 30_000, Email: "ana@example.com"},
		processed: map[string]bool{},
	}
	h := Webhook{Q: f, Providers: map[string]Provider{"pasarela": HMACProvider{Secret: testSecret}}}
	return f, h, oid
}

func postWebhook(h Webhook, body string, sign bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment/pasarela", strings.NewReader(body))
	if sign {
		req.Header.Set(SignatureHeader, Sign(testSecret, []byte(body)))
	}
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("provider", "pasarela")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhookSettlesPendingOrder(t *testing.T) {
	f, h, oid := newWebhookFixture()
	body := `{"eventId":"evt-1","orderId":"` + store.UUIDString(oid) + `","amount":30000,"status":"PAID"}`

	rec := postWebhook(h, body, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, order.StatusPaid, f.ord.Status)
}

func TestWebhookIsIdempotentPerEvent(t *testing.T) {
	f, h, oid := newWebhookFixture()
	body := `{"eventId":"evt-1","orderId":"` + store.UUIDString(oid) + `","amount":30000,"status":"PAID"}`

	require.Equal(t, http.StatusOK, postWebhook(h, body, true).Code)
	rec := postWebhook(h, body, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "duplicate")
	require.Equal(t, order.StatusPaid, f.ord.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f, h, oid := newWebhookFixture()
	body := `{"eventId":"evt-1","orderId":"` + store.UUIDString(oid) + `","amount":30000,"status":"PAID"}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment/pasarela", strings.NewReader(body))
	req.Header.Set(SignatureHeader, "deadbeef")
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("provider", "pasarela")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, order.StatusPendingPayment, f.ord.Status)
}

func TestWebhookRejectsAmountMismatch(t *testing.T) {
	f, h, oid := newWebhookFixture()
	body := `{"eventId":"evt-1","orderId":"` + store.UUIDString(oid) + `","amount":99,"status":"PAID"}`

	rec := postWebhook(h, body, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, order.StatusPendingPayment, f.ord.Status)
}

func TestWebhookFailureCancelsPendingOrder(t *testing.T) {
	f, h, oid := newWebhookFixture()
	body := `{"eventId":"evt-2","orderId":"` + store.UUIDString(oid) + `","amount":30000,"status":"EXPIRED"}`

	rec := postWebhook(h, body, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, order.StatusCanceled, f.ord.Status)
}

func TestWebhookRejectsSettlingShippedOrder(t *testing.T) {
	f, h, oid := newWebhookFixture()
	f.ord.Status = order.StatusShipped
	body := `{"eventId":"evt-3","orderId":"` + store.UUIDString(oid) + `","amount":30000,"status":"PAID"}`

	rec := postWebhook(h, body, true)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, order.StatusShipped, f.ord.Status)
}
