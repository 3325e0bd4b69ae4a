package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Promotion mirrors one promotions row.
type Promotion struct {
	ID             pgtype.UUID
	Name           string
	Kind           string
	BuySize        int32
	PaidPerSet     int32
	FixedUnitPrice int64
	Active         bool
	StartsAt       pgtype.Timestamptz
	EndsAt         pgtype.Timestamptz
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

const promotionColumns = `id, name, kind, buy_size, paid_per_set, fixed_unit_price, active, starts_at, ends_at, created_at, updated_at`

// UpsertPromotionParams carries the admin create/update payload.
type UpsertPromotionParams struct {
	Name           string
	Kind           string
	BuySize        int32
	PaidPerSet     int32
	FixedUnitPrice int64
	Active         bool
	StartsAt       *time.Time
	EndsAt         *time.Time
}

func tsOrNil(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

// ListPromotions returns promotions ordered by recency.
func (s *Store) ListPromotions(ctx context.Context, limit, offset int32) ([]Promotion, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT `+promotionColumns+` FROM promotions
ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Promotion
	for rows.Next() {
		var p Promotion
		if err := rows.Scan(&p.ID, &p.Name, &p.Kind, &p.BuySize, &p.PaidPerSet, &p.FixedUnitPrice, &p.Active, &p.StartsAt, &p.EndsAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPromotion fetches a promotion by identifier.
func (s *Store) GetPromotion(ctx context.Context, id pgtype.UUID) (Promotion, error) {
	var p Promotion
	err := s.pool.QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Kind, &p.BuySize, &p.PaidPerSet, &p.FixedUnitPrice, &p.Active, &p.StartsAt, &p.EndsAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreatePromotion inserts a promotion and returns its identifier.
func (s *Store) CreatePromotion(ctx context.Context, arg UpsertPromotionParams) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO promotions (name, kind, buy_size, paid_per_set, fixed_unit_price, active, starts_at, ends_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`,
		arg.Name, arg.Kind, arg.BuySize, arg.PaidPerSet, arg.FixedUnitPrice, arg.Active, tsOrNil(arg.StartsAt), tsOrNil(arg.EndsAt),
	).Scan(&id)
	return id, err
}

// UpdatePromotion replaces the mutable columns of a promotion.
func (s *Store) UpdatePromotion(ctx context.Context, id pgtype.UUID, arg UpsertPromotionParams) error {
	tag, err := s.pool.Exec(ctx, `UPDATE promotions
SET name = $2, kind = $3, buy_size = $4, paid_per_set = $5, fixed_unit_price = $6, active = $7, starts_at = $8, ends_at = $9, updated_at = now()
WHERE id = $1`,
		id, arg.Name, arg.Kind, arg.BuySize, arg.PaidPerSet, arg.FixedUnitPrice, arg.Active, tsOrNil(arg.StartsAt), tsOrNil(arg.EndsAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeletePromotion removes a promotion; product references are nulled by
// the schema.
func (s *Store) DeletePromotion(ctx context.Context, id pgtype.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
