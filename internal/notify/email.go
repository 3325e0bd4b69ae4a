package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/events"
)

// EmailNotifier sends transactional emails for selected topics. It reacts
// inline during event fanout, so failures are reported but never block the
// emitting operation.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	TopicToggles map[string]bool
}

// Notify implements events.Notifier.
func (n EmailNotifier) Notify(_ context.Context, event events.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email notify: decode payload: %w", err)
		}
	}
	to := extractRecipient(payload)
	if to == "" {
		return nil
	}
	return n.Mail.Send(to, subjectFor(event.Topic), bodyFor(event.Topic, payload))
}

func extractRecipient(payload map[string]any) string {
	for _, key := range []string{"email", "recipient", "userEmail", "customerEmail"} {
		if val, ok := payload[key]; ok {
			if s, ok := val.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func subjectFor(topic string) string {
	switch topic {
	case events.TopicOrderCreated:
		return "Hemos recibido tu pedido"
	case events.TopicOrderPaid:
		return "Pago confirmado"
	case events.TopicOrderCanceled:
		return "Tu pedido ha sido cancelado"
	case events.TopicPaymentFailed:
		return "No pudimos procesar tu pago"
	case events.TopicShipmentShipped:
		return "Tu pedido ha sido enviado"
	case events.TopicShipmentOutForDelivery:
		return "Tu pedido está en reparto"
	case events.TopicShipmentDelivered:
		return "Tu pedido ha sido entregado"
	default:
		return fmt.Sprintf("Notificación %s", topic)
	}
}

func bodyFor(topic string, payload map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Novedades de tu pedido (%s).</p>", topic)
	if orderID, ok := payload["orderId"].(string); ok && orderID != "" {
		fmt.Fprintf(&b, "<p>Pedido: %s</p>", orderID)
	}
	if tracking, ok := payload["trackingNumber"].(string); ok && tracking != "" {
		fmt.Fprintf(&b, "<p>Seguimiento: %s</p>", tracking)
	}
	if note, ok := payload["message"].(string); ok && note != "" {
		fmt.Fprintf(&b, "<p>%s</p>", note)
	}
	return b.String()
}
