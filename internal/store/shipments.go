package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Shipment mirrors one shipments row.
type Shipment struct {
	ID             pgtype.UUID
	OrderID        pgtype.UUID
	Courier        string
	TrackingNumber string
	Status         string
	UpdatedAt      pgtype.Timestamptz
}

const shipmentColumns = `id, order_id, courier, tracking_number, status, updated_at`

// UpsertShipment creates or replaces the shipment record for an order.
func (s *Store) UpsertShipment(ctx context.Context, orderID pgtype.UUID, courier, trackingNumber string) (Shipment, error) {
	var sh Shipment
	err := s.pool.QueryRow(ctx, `INSERT INTO shipments (order_id, courier, tracking_number)
VALUES ($1, $2, $3)
ON CONFLICT (order_id) DO UPDATE SET courier = EXCLUDED.courier, tracking_number = EXCLUDED.tracking_number, updated_at = now()
RETURNING `+shipmentColumns, orderID, courier, trackingNumber).
		Scan(&sh.ID, &sh.OrderID, &sh.Courier, &sh.TrackingNumber, &sh.Status, &sh.UpdatedAt)
	return sh, err
}

// GetShipmentByOrder fetches the shipment attached to an order.
func (s *Store) GetShipmentByOrder(ctx context.Context, orderID pgtype.UUID) (Shipment, error) {
	var sh Shipment
	err := s.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE order_id = $1`, orderID).
		Scan(&sh.ID, &sh.OrderID, &sh.Courier, &sh.TrackingNumber, &sh.Status, &sh.UpdatedAt)
	return sh, err
}

// GetShipmentByTracking fetches a shipment by courier tracking number,
// used when replaying courier webhooks.
func (s *Store) GetShipmentByTracking(ctx context.Context, trackingNumber string) (Shipment, error) {
	var sh Shipment
	err := s.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE tracking_number = $1`, trackingNumber).
		Scan(&sh.ID, &sh.OrderID, &sh.Courier, &sh.TrackingNumber, &sh.Status, &sh.UpdatedAt)
	return sh, err
}

// SetShipmentStatus updates the courier status of a shipment.
func (s *Store) SetShipmentStatus(ctx context.Context, id pgtype.UUID, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE shipments SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
