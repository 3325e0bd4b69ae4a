package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Normalised webhook statuses after provider translation.
const (
	EventPaid    = "PAID"
	EventFailed  = "FAILED"
	EventExpired = "EXPIRED"
)

// Result contains the normalised data extracted from a webhook
// notification after signature verification.
type Result struct {
	Valid   bool
	EventID string
	OrderID string
	Amount  int64
	Status  string
}

// Provider abstracts an upstream payment gateway's webhook contract.
type Provider interface {
	VerifyWebhook(r *http.Request, body []byte) (Result, error)
}

// HMACProvider verifies webhooks signed with an HMAC-SHA256 hex digest
// of the raw body, carried in the X-Signature header. The payload is a
// flat JSON document with the event id, order id, amount, and status.
type HMACProvider struct {
	Secret string
}

// SignatureHeader carries the hex HMAC digest of the webhook body.
const SignatureHeader = "X-Signature"

type hmacPayload struct {
	EventID string `json:"eventId"`
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

// VerifyWebhook checks the body signature and normalises the payload.
func (p HMACProvider) VerifyWebhook(r *http.Request, body []byte) (Result, error) {
	if p.Secret == "" {
		return Result{}, errors.New("webhook secret not configured")
	}
	sig := strings.TrimSpace(r.Header.Get(SignatureHeader))
	if sig == "" {
		return Result{}, errors.New("missing signature")
	}
	if !hmac.Equal([]byte(sig), []byte(Sign(p.Secret, body))) {
		return Result{Valid: false}, nil
	}
	var payload hmacPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Result{}, errors.New("invalid payload")
	}
	status := strings.ToUpper(strings.TrimSpace(payload.Status))
	switch status {
	case EventPaid, EventFailed, EventExpired:
	default:
		return Result{}, errors.New("unsupported status: " + payload.Status)
	}
	if payload.EventID == "" || payload.OrderID == "" {
		return Result{}, errors.New("eventId and orderId are required")
	}
	return Result{
		Valid:   true,
		EventID: payload.EventID,
		OrderID: payload.OrderID,
		Amount:  payload.Amount,
		Status:  status,
	}, nil
}

// Sign computes the hex HMAC-SHA256 digest a caller must place in the
// signature header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
