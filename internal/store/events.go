package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Event mirrors one events row: a persisted domain event awaiting fanout.
type Event struct {
	ID        pgtype.UUID
	Topic     string
	Payload   []byte
	CreatedAt pgtype.Timestamptz
}

// Delivery mirrors one event_deliveries row.
type Delivery struct {
	ID        pgtype.UUID
	EventID   pgtype.UUID
	Target    string
	Status    string
	Attempts  int32
	LastError pgtype.Text
	UpdatedAt pgtype.Timestamptz
}

// InsertEvent persists a domain event before fanout so a crashed worker
// can never lose it.
func (s *Store) InsertEvent(ctx context.Context, topic string, payload []byte) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO events (topic, payload) VALUES ($1, $2) RETURNING id`, topic, payload).Scan(&id)
	return id, err
}

// GetEvent fetches a persisted event.
func (s *Store) GetEvent(ctx context.Context, id pgtype.UUID) (Event, error) {
	var e Event
	err := s.pool.QueryRow(ctx, `SELECT id, topic, payload, created_at FROM events WHERE id = $1`, id).
		Scan(&e.ID, &e.Topic, &e.Payload, &e.CreatedAt)
	return e, err
}

// InsertDelivery records one pending delivery of an event to a target.
func (s *Store) InsertDelivery(ctx context.Context, eventID pgtype.UUID, target string) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO event_deliveries (event_id, target) VALUES ($1, $2) RETURNING id`, eventID, target).Scan(&id)
	return id, err
}

// MarkDelivery records the outcome of a delivery attempt.
func (s *Store) MarkDelivery(ctx context.Context, id pgtype.UUID, status string, lastError *string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE event_deliveries
SET status = $2, attempts = attempts + 1, last_error = $3, updated_at = now()
WHERE id = $1`, id, status, textOrNil(lastError))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListDeadLetters returns deliveries parked in the dead-letter state.
func (s *Store) ListDeadLetters(ctx context.Context, limit, offset int32) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT id, event_id, target, status, attempts, last_error, updated_at
FROM event_deliveries WHERE status = 'DEAD' ORDER BY updated_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.EventID, &d.Target, &d.Status, &d.Attempts, &d.LastError, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDelivery fetches one delivery record.
func (s *Store) GetDelivery(ctx context.Context, id pgtype.UUID) (Delivery, error) {
	var d Delivery
	err := s.pool.QueryRow(ctx, `SELECT id, event_id, target, status, attempts, last_error, updated_at
FROM event_deliveries WHERE id = $1`, id).
		Scan(&d.ID, &d.EventID, &d.Target, &d.Status, &d.Attempts, &d.LastError, &d.UpdatedAt)
	return d, err
}

// MarkWebhookProcessed records an inbound webhook identifier, returning
// false when it was already processed. Backs webhook idempotency.
func (s *Store) MarkWebhookProcessed(ctx context.Context, provider, externalID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `INSERT INTO processed_webhooks (provider, external_id)
VALUES ($1, $2) ON CONFLICT DO NOTHING`, provider, externalID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
