package shipping

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/obs"
)

// TokenHeader carries the shared secret couriers send with every callback.
const TokenHeader = "X-Webhook-Token"

type replayStore interface {
	MarkWebhookProcessed(ctx context.Context, provider, externalID string) (bool, error)
}

// Webhook handles courier callbacks and synchronises shipment state.
type Webhook struct {
	Svc    *Service
	Replay replayStore
	Token  string
}

type webhookPayload struct {
	TrackingNumber string     `json:"trackingNumber"`
	ExternalStatus string     `json:"externalStatus"`
	Description    *string    `json:"description"`
	Location       *string    `json:"location"`
	OccurredAt     *time.Time `json:"occurredAt"`
}

// Handle processes webhook callbacks from configured couriers.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Q == nil || h.Replay == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipment webhook not configured", nil)
		return
	}
	ctx, span := otel.Tracer("shipping.Webhook").Start(r.Context(), "ShippingWebhook.Handle")
	defer span.End()
	r = r.WithContext(ctx)

	courier := chi.URLParam(r, "courier")
	span.SetAttributes(attribute.String("shipping.webhook.courier", courier))
	courierLabel := normaliseLabel(courier)
	outcome := "error"
	defer func() {
		if obs.ShippingWebhookTotal != nil {
			obs.ShippingWebhookTotal.WithLabelValues(courierLabel, outcome).Inc()
		}
	}()

	if h.Token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(TokenHeader)), []byte(h.Token)) != 1 {
		outcome = "unauthorized"
		span.AddEvent("shipping webhook token rejected")
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid webhook token", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		span.RecordError(err)
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unable to read payload", nil)
		return
	}
	fresh, err := h.Replay.MarkWebhookProcessed(r.Context(), "shipping:"+courierLabel, common.Sha256Hex(string(body)))
	if err != nil {
		span.RecordError(err)
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "replay protection failed", nil)
		return
	}
	if !fresh {
		outcome = "replay"
		span.AddEvent("shipping webhook replay prevented")
		common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook payload", nil)
		return
	}
	payload, err := decodeWebhookPayload(body, r)
	if err != nil {
		span.RecordError(err)
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	status := MapExternalStatus(payload.ExternalStatus)
	if status == "" {
		span.RecordError(errors.New("unrecognised external status"))
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unrecognised external status", nil)
		return
	}
	span.SetAttributes(
		attribute.String("shipping.webhook.tracking", payload.TrackingNumber),
		attribute.String("shipping.webhook.status", status),
	)
	if _, err := h.Svc.Advance(r.Context(), TrackingUpdate{
		TrackingNumber: payload.TrackingNumber,
		Status:         status,
		Description:    payload.Description,
		Location:       payload.Location,
		OccurredAt:     payload.OccurredAt,
	}); err != nil {
		switch {
		case errors.Is(err, ErrInvalidShipmentTransition):
			span.RecordError(err)
			common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
			return
		case errors.Is(err, pgx.ErrNoRows):
			span.RecordError(err)
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "shipment not found", nil)
			return
		default:
			span.RecordError(err)
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to record tracking update", nil)
			return
		}
	}
	outcome = "success"
	w.WriteHeader(http.StatusNoContent)
}

func decodeWebhookPayload(body []byte, r *http.Request) (webhookPayload, error) {
	var payload webhookPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			payload = webhookPayload{}
		}
	}
	if payload.TrackingNumber == "" {
		payload.TrackingNumber = r.URL.Query().Get("tracking")
	}
	if payload.ExternalStatus == "" {
		payload.ExternalStatus = r.URL.Query().Get("status")
	}
	if payload.OccurredAt == nil {
		if ts := strings.TrimSpace(r.URL.Query().Get("occurredAt")); ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				payload.OccurredAt = &parsed
			}
		}
	}
	if payload.TrackingNumber == "" {
		return webhookPayload{}, errors.New("tracking number is required")
	}
	if payload.ExternalStatus == "" {
		return webhookPayload{}, errors.New("status is required")
	}
	return payload, nil
}

func normaliseLabel(value string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
