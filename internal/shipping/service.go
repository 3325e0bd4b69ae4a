package shipping

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/events"
	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/order"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

var (
	// ErrOrderNotEligible is returned when the order is not in a shippable state.
	ErrOrderNotEligible = errors.New("order status does not allow creating a shipment")
	// ErrInvalidShipmentTransition is returned when a courier update would move
	// the shipment backwards.
	ErrInvalidShipmentTransition = errors.New("invalid shipment status transition")
)

type querier interface {
	GetOrder(ctx context.Context, id pgtype.UUID) (store.Order, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (store.User, error)
	GetShipmentByOrder(ctx context.Context, orderID pgtype.UUID) (store.Shipment, error)
	GetShipmentByTracking(ctx context.Context, trackingNumber string) (store.Shipment, error)
	UpsertShipment(ctx context.Context, orderID pgtype.UUID, courier, trackingNumber string) (store.Shipment, error)
	SetShipmentStatus(ctx context.Context, id pgtype.UUID, status string) error
	TransitionOrderStatus(ctx context.Context, id pgtype.UUID, from, to string) error
}

// TrackingUpdate is one courier callback after it has been decoded and
// validated.
type TrackingUpdate struct {
	TrackingNumber string
	Status         string
	Description    *string
	Location       *string
	OccurredAt     *time.Time
}

// Service coordinates shipment registration, courier tracking updates and the
// order status they drive.
type Service struct {
	Q      querier
	Rates  Client
	Mail   common.EmailSender
	Bus    *events.Bus
	Log    zerolog.Logger
	Notify bool
}

// Create registers courier and tracking metadata for a paid order and moves
// the order to PACKED.
func (s *Service) Create(ctx context.Context, orderID pgtype.UUID, courier, tracking string) (store.Shipment, error) {
	ord, err := s.Q.GetOrder(ctx, orderID)
	if err != nil {
		return store.Shipment{}, err
	}
	if ord.Status != order.StatusPaid && ord.Status != order.StatusPacked {
		return store.Shipment{}, ErrOrderNotEligible
	}
	shipment, err := s.Q.UpsertShipment(ctx, orderID, courier, tracking)
	if err != nil {
		return store.Shipment{}, err
	}
	if ord.Status == order.StatusPaid {
		if err := s.Q.TransitionOrderStatus(ctx, orderID, order.StatusPaid, order.StatusPacked); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return shipment, err
		}
		if obs.OrderTransitionTotal != nil {
			obs.OrderTransitionTotal.WithLabelValues(order.StatusPaid, order.StatusPacked).Inc()
		}
	}
	return shipment, nil
}

// Advance applies one courier tracking update: it moves the shipment status
// forward, synchronises the order, emits the matching event and optionally
// notifies the customer.
func (s *Service) Advance(ctx context.Context, update TrackingUpdate) (store.Shipment, error) {
	shipment, err := s.Q.GetShipmentByTracking(ctx, update.TrackingNumber)
	if err != nil {
		return store.Shipment{}, err
	}
	if !allowedShipmentTransition(shipment.Status, update.Status) {
		return store.Shipment{}, ErrInvalidShipmentTransition
	}
	if shipment.Status != update.Status {
		if err := s.Q.SetShipmentStatus(ctx, shipment.ID, update.Status); err != nil {
			return store.Shipment{}, err
		}
		shipment.Status = update.Status
		if err := s.syncOrderStatus(ctx, shipment.OrderID, update.Status); err != nil {
			return shipment, err
		}
		s.emit(ctx, shipment, update)
		s.notifyCustomer(ctx, shipment.OrderID, update.Status)
	}
	return shipment, nil
}

// syncOrderStatus mirrors the shipment status onto the order. Courier replays
// of a stage the order already passed are ignored.
func (s *Service) syncOrderStatus(ctx context.Context, orderID pgtype.UUID, target string) error {
	ord, err := s.Q.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Rank(ord.Status) >= order.Rank(target) {
		return nil
	}
	if !order.CanTransition(ord.Status, target) {
		return nil
	}
	if err := s.Q.TransitionOrderStatus(ctx, orderID, ord.Status, target); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if obs.OrderTransitionTotal != nil {
		obs.OrderTransitionTotal.WithLabelValues(ord.Status, target).Inc()
	}
	return nil
}

func (s *Service) emit(ctx context.Context, shipment store.Shipment, update TrackingUpdate) {
	if s.Bus == nil {
		return
	}
	topic, ok := shipmentTopic(update.Status)
	if !ok {
		return
	}
	data := map[string]any{
		"orderId":        store.UUIDString(shipment.OrderID),
		"shipmentId":     store.UUIDString(shipment.ID),
		"trackingNumber": shipment.TrackingNumber,
		"status":         update.Status,
	}
	if update.Description != nil {
		data["description"] = *update.Description
	}
	if update.Location != nil {
		data["location"] = *update.Location
	}
	if ord, err := s.Q.GetOrder(ctx, shipment.OrderID); err == nil && ord.Email != "" {
		data["email"] = ord.Email
	}
	if _, err := s.Bus.Emit(ctx, topic, data); err != nil {
		s.Log.Warn().Err(err).Str("topic", topic).Msg("shipment event emit failed")
	}
}

func (s *Service) notifyCustomer(ctx context.Context, orderID pgtype.UUID, status string) {
	if s.Mail == nil || !s.Notify {
		return
	}
	subject, body := notificationContent(status)
	if subject == "" {
		return
	}
	ord, err := s.Q.GetOrder(ctx, orderID)
	if err != nil {
		return
	}
	email := ord.Email
	if email == "" {
		user, err := s.Q.GetUserByID(ctx, ord.UserID)
		if err != nil {
			return
		}
		email = user.Email
	}
	if err := s.Mail.Send(email, subject, body); err != nil {
		s.Log.Warn().Err(err).Msg("shipment notification email failed")
	}
}

func shipmentTopic(status string) (string, bool) {
	switch status {
	case order.StatusShipped:
		return events.TopicShipmentShipped, true
	case order.StatusOutForDelivery:
		return events.TopicShipmentOutForDelivery, true
	case order.StatusDelivered:
		return events.TopicShipmentDelivered, true
	}
	return "", false
}

func notificationContent(status string) (string, string) {
	switch status {
	case order.StatusShipped:
		return "Tu pedido ha sido enviado", "<p>Tu pedido ya está en camino.</p>"
	case order.StatusOutForDelivery:
		return "Tu pedido está en reparto", "<p>El mensajero entregará tu pedido hoy.</p>"
	case order.StatusDelivered:
		return "Tu pedido ha sido entregado", "<p>Gracias por tu compra.</p>"
	}
	return "", ""
}
