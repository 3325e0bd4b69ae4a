package analytics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/analytics"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type stubQueries struct {
	salesCalls int
	topCalls   int
}

func (s *stubQueries) SalesDailyRange(_ context.Context, from, _ time.Time) ([]store.SalesDay, error) {
	s.salesCalls++
	return []store.SalesDay{{Day: from, Orders: 2, Revenue: 45000}}, nil
}

func (s *stubQueries) TopProducts(_ context.Context, _, _ int32) ([]store.TopProduct, error) {
	s.topCalls++
	return []store.TopProduct{{Title: "Camiseta básica", Slug: "camiseta-basica", UnitsSold: 12, Revenue: 120000}}, nil
}

func newCachedService(t *testing.T) (*analytics.Service, *stubQueries) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	queries := &stubQueries{}
	return &analytics.Service{Q: queries, R: rdb, TTL: time.Minute, DefaultRange: 30}, queries
}

func TestSalesRangeHitsCacheOnSecondCall(t *testing.T) {
	svc, queries := newCachedService(t)
	from := time.Now().AddDate(0, 0, -7).Truncate(24 * time.Hour)
	to := time.Now().Truncate(24 * time.Hour)

	first, err := svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)
	second, err := svc.SalesRange(context.Background(), from, to)
	require.NoError(t, err)

	require.Equal(t, 1, queries.salesCalls)
	require.Equal(t, first[0].Revenue, second[0].Revenue)
}

func TestTopProductsCachedPerPage(t *testing.T) {
	svc, queries := newCachedService(t)

	_, err := svc.TopProducts(context.Background(), 10, 0)
	require.NoError(t, err)
	_, err = svc.TopProducts(context.Background(), 10, 0)
	require.NoError(t, err)
	_, err = svc.TopProducts(context.Background(), 10, 10)
	require.NoError(t, err)

	require.Equal(t, 2, queries.topCalls, "distinct pages miss the cache independently")
}

func TestSalesRejectsInvertedRange(t *testing.T) {
	svc, _ := newCachedService(t)
	h := analytics.Handler{Svc: svc}

	req := httptest.NewRequest(http.MethodGet, "/admin/analytics/sales?from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.Sales(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
