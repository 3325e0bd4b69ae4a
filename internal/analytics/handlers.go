package analytics

import (
	"net/http"
	"time"

	"github.com/tienda-labs/backend-tienda/internal/common"
)

// Handler exposes the admin analytics read endpoints.
type Handler struct {
	Svc *Service
}

// Sales returns per-day sales totals. Callers either pass an explicit
// RFC3339 from/to window or a trailing number of days.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	now := h.Svc.now()

	var from, to time.Time
	if query.Get("from") != "" && query.Get("to") != "" {
		var err error
		from, err = time.Parse(time.RFC3339, query.Get("from"))
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid from date", nil)
			return
		}
		to, err = time.Parse(time.RFC3339, query.Get("to"))
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid to date", nil)
			return
		}
	} else {
		days := h.Svc.DefaultRange
		if days <= 0 {
			days = 30
		}
		if parsed := common.AtoiDefault(query.Get("days"), days); parsed > 0 {
			days = parsed
		}
		to = now
		from = to.AddDate(0, 0, -days)
	}
	if !from.Before(to) {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "from must be before to", nil)
		return
	}

	rows, err := h.Svc.SalesRange(r.Context(), from, to)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, rows)
}

// TopProducts returns best-selling products for the admin dashboard.
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := common.AtoiDefault(q.Get("limit"), 10)
	offset := common.AtoiDefault(q.Get("offset"), 0)

	rows, err := h.Svc.TopProducts(r.Context(), int32(limit), int32(offset))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, rows)
}
