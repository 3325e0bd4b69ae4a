package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/resilience"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

// Delivery lifecycle statuses persisted on event_deliveries rows.
const (
	DeliveryStatusPending   = "PENDING"
	DeliveryStatusDelivered = "DELIVERED"
	DeliveryStatusFailed    = "FAILED"
	DeliveryStatusDead      = "DEAD"
)

// ErrDeliveryFailed is returned so the task queue retries the delivery.
var ErrDeliveryFailed = errors.New("notify: webhook delivery failed")

type delivererQueries interface {
	GetDelivery(ctx context.Context, id pgtype.UUID) (store.Delivery, error)
	GetEvent(ctx context.Context, id pgtype.UUID) (store.Event, error)
	MarkDelivery(ctx context.Context, id pgtype.UUID, status string, lastError *string) error
}

// Deliverer pushes persisted events to webhook targets. Exhausted deliveries
// are parked in the dead-letter state instead of retrying forever.
type Deliverer struct {
	Q           delivererQueries
	HTTP        *resilience.HTTPClient
	Secret      string
	MaxAttempts int
	Log         zerolog.Logger
}

// DeliverByID executes one delivery attempt. A non-nil error means the task
// should be retried; dead-lettered and already-delivered rows return nil.
func (d *Deliverer) DeliverByID(ctx context.Context, deliveryID string) error {
	if d == nil || d.Q == nil {
		return errors.New("notify: deliverer not configured")
	}
	id, err := store.UUIDValue(deliveryID)
	if err != nil {
		return fmt.Errorf("notify: invalid delivery id %q: %w", deliveryID, err)
	}
	ctx, span := otel.Tracer("notify.Deliverer").Start(ctx, "Deliverer.DeliverByID")
	defer span.End()
	span.SetAttributes(attribute.String("notify.delivery_id", deliveryID))

	delivery, err := d.Q.GetDelivery(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if delivery.Status == DeliveryStatusDelivered || delivery.Status == DeliveryStatusDead {
		return nil
	}
	event, err := d.Q.GetEvent(ctx, delivery.EventID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(
		attribute.String("notify.topic", event.Topic),
		attribute.String("notify.target", delivery.Target),
	)

	start := time.Now()
	status, sendErr := d.send(ctx, delivery, event)
	if sendErr == nil && status >= 200 && status < 300 {
		d.observe("delivered", start)
		return d.Q.MarkDelivery(ctx, delivery.ID, DeliveryStatusDelivered, nil)
	}

	reason := fmt.Sprintf("status=%d err=%v", status, sendErr)
	span.RecordError(fmt.Errorf("%s", reason))
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	if int(delivery.Attempts)+1 >= maxAttempts {
		d.observe("dlq", start)
		if obs.NotifyDLQTotal != nil {
			obs.NotifyDLQTotal.Inc()
		}
		d.Log.Error().Str("delivery", deliveryID).Str("target", delivery.Target).
			Str("reason", reason).Msg("webhook delivery dead-lettered")
		return d.Q.MarkDelivery(ctx, delivery.ID, DeliveryStatusDead, &reason)
	}
	d.observe("failed", start)
	if err := d.Q.MarkDelivery(ctx, delivery.ID, DeliveryStatusFailed, &reason); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrDeliveryFailed, reason)
}

// replayOnce re-attempts a dead-lettered delivery on operator request. The
// outcome is recorded but the attempt budget is not consulted again.
func (d *Deliverer) replayOnce(ctx context.Context, delivery store.Delivery) error {
	event, err := d.Q.GetEvent(ctx, delivery.EventID)
	if err != nil {
		return err
	}
	start := time.Now()
	status, sendErr := d.send(ctx, delivery, event)
	if sendErr == nil && status >= 200 && status < 300 {
		d.observe("delivered", start)
		return d.Q.MarkDelivery(ctx, delivery.ID, DeliveryStatusDelivered, nil)
	}
	reason := fmt.Sprintf("status=%d err=%v", status, sendErr)
	d.observe("dlq", start)
	if err := d.Q.MarkDelivery(ctx, delivery.ID, DeliveryStatusDead, &reason); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrDeliveryFailed, reason)
}

func (d *Deliverer) observe(result string, start time.Time) {
	if obs.NotifyDeliveriesTotal != nil {
		obs.NotifyDeliveriesTotal.WithLabelValues(result).Inc()
	}
	if obs.NotifyAttemptLatency != nil {
		obs.NotifyAttemptLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func (d *Deliverer) send(ctx context.Context, delivery store.Delivery, event store.Event) (int, error) {
	if err := validateURL(delivery.Target); err != nil {
		return 0, err
	}
	occurred := time.Now().UTC()
	if event.CreatedAt.Valid {
		occurred = event.CreatedAt.Time
	}
	eventID := store.UUIDString(event.ID)
	envelope := struct {
		EventID    string          `json:"eventId"`
		Topic      string          `json:"topic"`
		Data       json.RawMessage `json:"data"`
		OccurredAt time.Time       `json:"occurredAt"`
	}{
		EventID:    eventID,
		Topic:      event.Topic,
		Data:       json.RawMessage(event.Payload),
		OccurredAt: occurred,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.Target, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	ts := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tienda-webhooks/1.0")
	req.Header.Set("X-Event-ID", eventID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", store.UUIDString(delivery.ID))
	req.Header.Set("X-Signature", ComputeSignature(d.Secret, ts, eventID, body))

	var resp *http.Response
	if d.HTTP != nil {
		resp, err = d.HTTP.Do(ctx, req)
	} else {
		resp, err = http.DefaultClient.Do(req)
	}
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the shared secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}
