package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/events"
	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type adminQueries interface {
	GetOrder(ctx context.Context, id pgtype.UUID) (store.Order, error)
	ListOrdersAdmin(ctx context.Context, status string, limit, offset int32) ([]store.Order, error)
	CountOrdersAdmin(ctx context.Context, status string) (int64, error)
	TransitionOrderStatus(ctx context.Context, id pgtype.UUID, from, to string) error
}

// AdminHandler provides administrative order management endpoints.
type AdminHandler struct {
	Q   adminQueries
	Bus *events.Bus
}

// List returns orders across all users, optionally filtered by status.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !Known(status) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status filter", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	total, err := h.Q.CountOrdersAdmin(r.Context(), status)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count orders", nil)
		return
	}
	orders, err := h.Q.ListOrdersAdmin(r.Context(), status, int32(perPage), int32(common.Offset(page, perPage)))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	out := make([]orderSummaryView, 0, len(orders))
	for _, ord := range orders {
		out = append(out, toSummaryView(ord))
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSONList(w, http.StatusOK, out, common.NewPagination(page, perPage, int(total)))
}

// PatchStatus moves an order along the fulfillment chain. The update is
// optimistic: it only lands when the order is still in the status the
// admin saw, so two concurrent updates cannot both win.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	oid, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	target := strings.ToUpper(strings.TrimSpace(req.Status))
	if target == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "status is required", nil)
		return
	}
	if !Known(target) || target == StatusPendingPayment || target == StatusPaid {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", nil)
		return
	}
	ord, err := h.Q.GetOrder(r.Context(), oid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if !CanTransition(ord.Status, target) {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "state transition not allowed", nil)
		return
	}
	if err := h.Q.TransitionOrderStatus(r.Context(), oid, ord.Status, target); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusConflict, "INVALID_STATE", "order status changed concurrently", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order status", nil)
		return
	}
	if obs.OrderTransitionTotal != nil {
		obs.OrderTransitionTotal.WithLabelValues(ord.Status, target).Inc()
	}
	h.emitTransition(r.Context(), ord, target)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) emitTransition(ctx context.Context, ord store.Order, target string) {
	if h.Bus == nil {
		return
	}
	var topic string
	switch target {
	case StatusShipped:
		topic = events.TopicShipmentShipped
	case StatusOutForDelivery:
		topic = events.TopicShipmentOutForDelivery
	case StatusDelivered:
		topic = events.TopicShipmentDelivered
	case StatusCanceled:
		topic = events.TopicOrderCanceled
	default:
		return
	}
	_, _ = h.Bus.Emit(ctx, topic, map[string]any{
		"orderId": store.UUIDString(ord.ID),
		"email":   ord.Email,
		"status":  target,
	})
}
