package notify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type adminQueries interface {
	ListDeadLetters(ctx context.Context, limit, offset int32) ([]store.Delivery, error)
	GetDelivery(ctx context.Context, id pgtype.UUID) (store.Delivery, error)
}

// AdminHandler exposes dead-letter inspection and replay for operators.
type AdminHandler struct {
	Q         adminQueries
	Deliverer *Deliverer
}

type deliveryView struct {
	ID        string     `json:"id"`
	EventID   string     `json:"eventId"`
	Target    string     `json:"target"`
	Status    string     `json:"status"`
	Attempts  int32      `json:"attempts"`
	LastError *string    `json:"lastError"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

func toDeliveryView(d store.Delivery) deliveryView {
	v := deliveryView{
		ID:       store.UUIDString(d.ID),
		EventID:  store.UUIDString(d.EventID),
		Target:   d.Target,
		Status:   d.Status,
		Attempts: d.Attempts,
	}
	if d.LastError.Valid {
		s := d.LastError.String
		v.LastError = &s
	}
	if d.UpdatedAt.Valid {
		t := d.UpdatedAt.Time
		v.UpdatedAt = &t
	}
	return v
}

// ListDLQ returns dead-lettered deliveries, newest first.
func (h *AdminHandler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	deliveries, err := h.Q.ListDeadLetters(r.Context(), int32(perPage), int32(common.Offset(page, perPage)))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list dead letters", nil)
		return
	}
	views := make([]deliveryView, 0, len(deliveries))
	for _, d := range deliveries {
		views = append(views, toDeliveryView(d))
	}
	common.JSONData(w, http.StatusOK, views)
}

// ReplayDLQ re-runs one dead-lettered delivery synchronously and reports the
// resulting status.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	if h.Deliverer == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "deliverer not configured", nil)
		return
	}
	id, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid delivery id", nil)
		return
	}
	delivery, err := h.Q.GetDelivery(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "delivery not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load delivery", nil)
		return
	}
	if delivery.Status != DeliveryStatusDead {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "delivery is not dead-lettered", nil)
		return
	}
	// Replay bypasses the attempt budget: the deliverer only refuses rows that
	// already reached DELIVERED.
	deliverErr := h.Deliverer.replayOnce(r.Context(), delivery)
	refreshed, err := h.Q.GetDelivery(r.Context(), id)
	if err != nil {
		refreshed = delivery
	}
	view := toDeliveryView(refreshed)
	if deliverErr != nil {
		common.JSON(w, http.StatusBadGateway, map[string]any{
			"data":  view,
			"error": map[string]any{"code": "REPLAY_FAILED", "message": deliverErr.Error()},
		})
		return
	}
	common.JSONData(w, http.StatusOK, view)
}
