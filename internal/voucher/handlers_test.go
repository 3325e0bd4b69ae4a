package voucher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/store"
)

type fakeVoucherQueries struct {
	byCode map[string]store.Voucher
}

func (f *fakeVoucherQueries) GetVoucherByCode(_ context.Context, code string) (store.Voucher, error) {
	v, ok := f.byCode[code]
	if !ok {
		return store.Voucher{}, pgx.ErrNoRows
	}
	return v, nil
}

func (f *fakeVoucherQueries) CreateVoucher(_ context.Context, arg store.UpsertVoucherParams) (pgtype.UUID, error) {
	return pgtype.UUID{}, nil
}

func (f *fakeVoucherQueries) ListVouchers(_ context.Context, _, _ int32) ([]store.Voucher, error) {
	out := make([]store.Voucher, 0, len(f.byCode))
	for _, v := range f.byCode {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeVoucherQueries) SetVoucherActive(_ context.Context, _ pgtype.UUID, _ bool) error {
	return nil
}

func TestPreviewAppliesPercentVoucher(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	h := &Handler{
		Q: &fakeVoucherQueries{byCode: map[string]store.Voucher{
			"VERANO10": {Code: "VERANO10", Kind: KindPercent, Value: 1_000, Active: true},
		}},
		Now: func() time.Time { return now },
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/vouchers/preview", strings.NewReader(`{"code":"verano10","subtotal":50000}`))
	h.Preview(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Discount int64 `json:"discount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 5_000, body.Data.Discount)
}

func TestPreviewRejectsUnknownCode(t *testing.T) {
	h := &Handler{Q: &fakeVoucherQueries{byCode: map[string]store.Voucher{}}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/vouchers/preview", strings.NewReader(`{"code":"NOPE","subtotal":1000}`))
	h.Preview(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRejectsBadKind(t *testing.T) {
	h := &Handler{Q: &fakeVoucherQueries{byCode: map[string]store.Voucher{}}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/vouchers", strings.NewReader(`{"code":"X","kind":"bogus","value":100}`))
	h.Create(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
