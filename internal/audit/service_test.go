package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type fakeAuditStore struct {
	entries []store.InsertAuditEntryParams
}

func (f *fakeAuditStore) InsertAuditEntry(_ context.Context, arg store.InsertAuditEntryParams) error {
	f.entries = append(f.entries, arg)
	return nil
}

func (f *fakeAuditStore) ListAuditEntries(_ context.Context, _, _ int32) ([]store.AuditEntry, error) {
	out := make([]store.AuditEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, store.AuditEntry{Action: e.Action, Resource: e.Resource, Method: e.Method, Path: e.Path, Status: e.Status})
	}
	return out, nil
}

func TestRecordDerivesActionFromRequest(t *testing.T) {
	f := &fakeAuditStore{}
	svc := Service{Q: f, Enabled: true}

	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/42/status", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "6f1b0a6e-8f7f-4f2a-9f44-1c2c8f0a9b3d"))

	require.NoError(t, svc.Record(req.Context(), "", "", "42", req, http.StatusNoContent, nil))
	require.Len(t, f.entries, 1)

	entry := f.entries[0]
	require.Equal(t, "PATCH /admin/orders/42/status", entry.Action)
	require.Equal(t, "orders", entry.Resource)
	require.Equal(t, int32(http.StatusNoContent), entry.Status)
	require.True(t, entry.ActorID.Valid)
	require.NotNil(t, entry.ResourceID)
	require.Equal(t, "42", *entry.ResourceID)
}

func TestRecordDisabledIsNoop(t *testing.T) {
	f := &fakeAuditStore{}
	svc := Service{Q: f, Enabled: false}

	req := httptest.NewRequest(http.MethodDelete, "/admin/products/x", nil)
	require.NoError(t, svc.Record(req.Context(), "", "", "", req, http.StatusOK, nil))
	require.Empty(t, f.entries)
}

func TestMiddlewareRecordsMutationsOnly(t *testing.T) {
	f := &fakeAuditStore{}
	rec := Recorder{Svc: Service{Q: f, Enabled: true}}
	handler := rec.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	get := httptest.NewRequest(http.MethodGet, "/admin/promotions", nil)
	handler.ServeHTTP(httptest.NewRecorder(), get)
	require.Empty(t, f.entries, "reads are not audited")

	post := httptest.NewRequest(http.MethodPost, "/admin/promotions", nil)
	handler.ServeHTTP(httptest.NewRecorder(), post)
	require.Len(t, f.entries, 1)
	require.Equal(t, int32(http.StatusCreated), f.entries[0].Status)
}

func TestListReturnsEntries(t *testing.T) {
	f := &fakeAuditStore{entries: []store.InsertAuditEntryParams{
		{Action: "POST /admin/promotions", Resource: "promotions", Method: "POST", Path: "/admin/promotions", Status: 201},
	}}
	h := Handler{Svc: Service{Q: f, Enabled: true}}

	req := httptest.NewRequest(http.MethodGet, "/admin/audit", nil)
	recorder := httptest.NewRecorder()
	h.List(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var body struct {
		Data []entryView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "promotions", body.Data[0].Resource)
}
