package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Voucher mirrors one vouchers row.
type Voucher struct {
	ID          pgtype.UUID
	Code        string
	Kind        string
	Value       int64
	MinSubtotal int64
	MaxDiscount int64
	Active      bool
	StartsAt    pgtype.Timestamptz
	EndsAt      pgtype.Timestamptz
	CreatedAt   pgtype.Timestamptz
}

const voucherColumns = `id, code, kind, value, min_subtotal, max_discount, active, starts_at, ends_at, created_at`

// GetVoucherByCode fetches a voucher by its public code.
func (s *Store) GetVoucherByCode(ctx context.Context, code string) (Voucher, error) {
	var v Voucher
	err := s.pool.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code).
		Scan(&v.ID, &v.Code, &v.Kind, &v.Value, &v.MinSubtotal, &v.MaxDiscount, &v.Active, &v.StartsAt, &v.EndsAt, &v.CreatedAt)
	return v, err
}

// UpsertVoucherParams carries the admin voucher payload.
type UpsertVoucherParams struct {
	Code        string
	Kind        string
	Value       int64
	MinSubtotal int64
	MaxDiscount int64
	Active      bool
	StartsAt    *time.Time
	EndsAt      *time.Time
}

// CreateVoucher inserts a voucher and returns its identifier.
func (s *Store) CreateVoucher(ctx context.Context, arg UpsertVoucherParams) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO vouchers (code, kind, value, min_subtotal, max_discount, active, starts_at, ends_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		arg.Code, arg.Kind, arg.Value, arg.MinSubtotal, arg.MaxDiscount, arg.Active, tsOrNil(arg.StartsAt), tsOrNil(arg.EndsAt)).Scan(&id)
	return id, err
}

// ListVouchers returns vouchers, newest first.
func (s *Store) ListVouchers(ctx context.Context, limit, offset int32) ([]Voucher, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers
ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		var v Voucher
		if err := rows.Scan(&v.ID, &v.Code, &v.Kind, &v.Value, &v.MinSubtotal, &v.MaxDiscount, &v.Active, &v.StartsAt, &v.EndsAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SetVoucherActive toggles a voucher.
func (s *Store) SetVoucherActive(ctx context.Context, id pgtype.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE vouchers SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
