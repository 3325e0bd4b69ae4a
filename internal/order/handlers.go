package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/events"
	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type queryProvider interface {
	GetOrder(ctx context.Context, id pgtype.UUID) (store.Order, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]store.OrderItem, error)
	ListOrdersByUser(ctx context.Context, userID pgtype.UUID, limit, offset int32) ([]store.Order, error)
	CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	TransitionOrderStatus(ctx context.Context, id pgtype.UUID, from, to string) error
}

// Handler exposes the customer-facing order endpoints.
type Handler struct {
	Q   queryProvider
	Bus *events.Bus
}

type orderSummaryView struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	Subtotal        int64      `json:"subtotal"`
	PromoDiscount   int64      `json:"promoDiscount"`
	VoucherCode     *string    `json:"voucherCode,omitempty"`
	VoucherDiscount int64      `json:"voucherDiscount"`
	Tax             int64      `json:"tax"`
	ShippingFee     int64      `json:"shippingFee"`
	Total           int64      `json:"total"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
}

type orderItemView struct {
	ProductID    string  `json:"productId"`
	Title        string  `json:"title"`
	Selector     string  `json:"selector,omitempty"`
	UnitPrice    int64   `json:"unitPrice"`
	Qty          int32   `json:"qty"`
	PayableUnits int32   `json:"payableUnits"`
	LineTotal    int64   `json:"lineTotal"`
	PromoLabel   *string `json:"promoLabel,omitempty"`
}

type orderDetailView struct {
	orderSummaryView
	Items           []orderItemView `json:"items"`
	ShippingAddress json.RawMessage `json:"shippingAddress,omitempty"`
}

// List returns the authenticated user's orders, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	total, err := h.Q.CountOrdersByUser(r.Context(), uid)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count orders", nil)
		return
	}
	orders, err := h.Q.ListOrdersByUser(r.Context(), uid, int32(perPage), int32(common.Offset(page, perPage)))
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

// Get returns one order with its frozen line snapshots.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	ord, ok := h.loadOwnOrder(w, r, uid)
	if !ok {
		return
	}
	items, err := h.Q.ListOrderItems(r.Context(), ord.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	detail := orderDetailView{
		orderSummaryView: toSummaryView(ord),
		Items:            make([]orderItemView, 0, len(items)),
	}
	if len(ord.ShippingAddress) > 0 {
		detail.ShippingAddress = json.RawMessage(ord.ShippingAddress)
	}
	for _, it := range items {
		view := orderItemView{
			ProductID:    store.UUIDString(it.ProductID),
			Title:        it.Title,
			Selector:     it.Selector,
			UnitPrice:    it.UnitPrice,
			Qty:          it.Qty,
			PayableUnits: it.PayableUnits,
			LineTotal:    it.LineTotal,
		}
		if it.PromoLabel.Valid {
			label := it.PromoLabel.String
			view.PromoLabel = &label
		}
		detail.Items = append(detail.Items, view)
	}
	common.JSONData(w, http.StatusOK, detail)
}

// Cancel cancels the user's own order while it is still awaiting payment.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.authedUser(w, r)
	if !ok {
		return
	}
	ord, ok := h.loadOwnOrder(w, r, uid)
	if !ok {
		return
	}
	if ord.Status != StatusPendingPayment {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "only pending orders can be canceled", nil)
		return
	}
	if err := h.Q.TransitionOrderStatus(r.Context(), ord.ID, StatusPendingPayment, StatusCanceled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusConflict, "INVALID_STATE", "order is no longer pending", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to cancel order", nil)
		return
	}
	if obs.OrderTransitionTotal != nil {
		obs.OrderTransitionTotal.WithLabelValues(StatusPendingPayment, StatusCanceled).Inc()
	}
	if h.Bus != nil {
		_, _ = h.Bus.Emit(r.Context(), events.TopicOrderCanceled, map[string]any{
			"orderId": store.UUIDString(ord.ID),
			"email":   ord.Email,
		})
	}
	common.JSONData(w, http.StatusOK, map[string]any{"status": StatusCanceled})
}

func (h *Handler) authedUser(w http.ResponseWriter, r *http.Request) (pgtype.UUID, bool) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return pgtype.UUID{}, false
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return pgtype.UUID{}, false
	}
	uid, err := store.UUIDValue(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return pgtype.UUID{}, false
	}
	return uid, true
}

func (h *Handler) loadOwnOrder(w http.ResponseWriter, r *http.Request, uid pgtype.UUID) (store.Order, bool) {
	oid, err := store.UUIDValue(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return store.Order{}, false
	}
	ord, err := h.Q.GetOrder(r.Context(), oid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return store.Order{}, false
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return store.Order{}, false
	}
	// Ownership check doubles as a 404 so order IDs are not probeable.
	if ord.UserID != uid {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return store.Order{}, false
	}
	return ord, true
}

func toSummaryView(ord store.Order) orderSummaryView {
	out := orderSummaryView{
		ID:              store.UUIDString(ord.ID),
		Status:          ord.Status,
		Subtotal:        ord.Subtotal,
		PromoDiscount:   ord.PromoDiscount,
		VoucherDiscount: ord.VoucherDiscount,
		Tax:             ord.Tax,
		ShippingFee:     ord.ShippingFee,
		Total:           ord.Total,
	}
	if ord.VoucherCode.Valid {
		code := ord.VoucherCode.String
		out.VoucherCode = &code
	}
	if ord.CreatedAt.Valid {
		t := ord.CreatedAt.Time
		out.CreatedAt = &t
	}
	return out
}
