package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/events"
	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/order"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type webhookQueries interface {
	GetOrder(ctx context.Context, id pgtype.UUID) (store.Order, error)
	TransitionOrderStatus(ctx context.Context, id pgtype.UUID, from, to string) error
	MarkWebhookProcessed(ctx context.Context, provider, externalID string) (bool, error)
}

// Webhook ingests payment provider callbacks and drives the
// PENDING_PAYMENT leg of the order state machine. Each provider event
// id is recorded so redelivered webhooks are acknowledged without
// re-running the transition.
type Webhook struct {
	Q         webhookQueries
	Providers map[string]Provider
	Bus       *events.Bus
	Log       zerolog.Logger
}

// Handle processes a callback for the provider named in the URL.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Q == nil || len(h.Providers) == 0 {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	provider, ok := h.Providers[providerKey]
	if !ok {
		common.JSONError(w, http.StatusNotFound, "PROVIDER_NOT_SUPPORTED", "unknown provider", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	result, err := provider.VerifyWebhook(r, body)
	if err != nil {
		h.count("invalid")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", err.Error(), nil)
		return
	}
	if !result.Valid {
		h.count("bad_signature")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}

	ctx := r.Context()
	fresh, err := h.Q.MarkWebhookProcessed(ctx, providerKey, result.EventID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "unable to record webhook", nil)
		return
	}
	if !fresh {
		h.count("replay")
		common.JSONData(w, http.StatusOK, map[string]any{"duplicate": true})
		return
	}

	oid, err := store.UUIDValue(result.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid order identifier", nil)
		return
	}
	ord, err := h.Q.GetOrder(ctx, oid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if result.Amount > 0 && result.Amount != ord.Total {
		h.count("amount_mismatch")
		common.JSONError(w, http.StatusBadRequest, "AMOUNT_MISMATCH", "provider amount mismatch", nil)
		return
	}

	switch result.Status {
	case EventPaid:
		h.settle(ctx, w, ord)
	case EventFailed, EventExpired:
		h.fail(ctx, w, ord, result.Status)
	default:
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "unsupported status", nil)
	}
}

func (h Webhook) settle(ctx context.Context, w http.ResponseWriter, ord store.Order) {
	if ord.Status == order.StatusPaid {
		common.JSONData(w, http.StatusOK, map[string]any{"status": ord.Status})
		return
	}
	if err := h.Q.TransitionOrderStatus(ctx, ord.ID, order.StatusPendingPayment, order.StatusPaid); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.count("invalid_state")
			common.JSONError(w, http.StatusConflict, "INVALID_STATE", "order is not awaiting payment", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order", nil)
		return
	}
	h.count("paid")
	if obs.OrderTransitionTotal != nil {
		obs.OrderTransitionTotal.WithLabelValues(order.StatusPendingPayment, order.StatusPaid).Inc()
	}
	h.emit(ctx, events.TopicOrderPaid, ord)
	common.JSONData(w, http.StatusOK, map[string]any{"status": order.StatusPaid})
}

func (h Webhook) fail(ctx context.Context, w http.ResponseWriter, ord store.Order, status string) {
	if err := h.Q.TransitionOrderStatus(ctx, ord.ID, order.StatusPendingPayment, order.StatusCanceled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.count("invalid_state")
			common.JSONError(w, http.StatusConflict, "INVALID_STATE", "order is not awaiting payment", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order", nil)
		return
	}
	h.count(strings.ToLower(status))
	if obs.OrderTransitionTotal != nil {
		obs.OrderTransitionTotal.WithLabelValues(order.StatusPendingPayment, order.StatusCanceled).Inc()
	}
	h.emit(ctx, events.TopicPaymentFailed, ord)
	common.JSONData(w, http.StatusOK, map[string]any{"status": order.StatusCanceled})
}

func (h Webhook) emit(ctx context.Context, topic string, ord store.Order) {
	if h.Bus == nil {
		return
	}
	if _, err := h.Bus.Emit(ctx, topic, map[string]any{
		"orderId": store.UUIDString(ord.ID),
		"email":   ord.Email,
		"total":   ord.Total,
	}); err != nil {
		h.Log.Warn().Err(err).Str("topic", topic).Msg("emit payment event")
	}
}

func (h Webhook) count(result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(result).Inc()
	}
}
