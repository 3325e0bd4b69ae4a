package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Review mirrors one reviews row joined with the author's name.
type Review struct {
	ID         pgtype.UUID
	ProductID  pgtype.UUID
	UserID     pgtype.UUID
	AuthorName string
	Rating     int32
	Comment    string
	CreatedAt  pgtype.Timestamptz
}

// UpsertReview writes the user's review for a product, replacing any
// previous one (one review per user per product).
func (s *Store) UpsertReview(ctx context.Context, productID, userID pgtype.UUID, rating int32, comment string) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO reviews (product_id, user_id, rating, comment)
VALUES ($1, $2, $3, $4)
ON CONFLICT (product_id, user_id) DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, created_at = now()
RETURNING id`, productID, userID, rating, comment).Scan(&id)
	return id, err
}

// ListReviewsByProduct returns a product's reviews, newest first.
func (s *Store) ListReviewsByProduct(ctx context.Context, productID pgtype.UUID, limit, offset int32) ([]Review, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `SELECT r.id, r.product_id, r.user_id, u.name, r.rating, r.comment, r.created_at
FROM reviews r
JOIN users u ON u.id = r.user_id
WHERE r.product_id = $1
ORDER BY r.created_at DESC
LIMIT $2 OFFSET $3`, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.AuthorName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReviewStats returns count and average rating for a product.
func (s *Store) ReviewStats(ctx context.Context, productID pgtype.UUID) (count int64, avg float64, err error) {
	err = s.pool.QueryRow(ctx, `SELECT count(*), coalesce(avg(rating), 0)
FROM reviews WHERE product_id = $1`, productID).Scan(&count, &avg)
	return
}

// DeleteReview removes a review; admins pass any review, users only
// their own (enforced by the caller).
func (s *Store) DeleteReview(ctx context.Context, id pgtype.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetReview fetches a review by identifier.
func (s *Store) GetReview(ctx context.Context, id pgtype.UUID) (Review, error) {
	var r Review
	err := s.pool.QueryRow(ctx, `SELECT r.id, r.product_id, r.user_id, u.name, r.rating, r.comment, r.created_at
FROM reviews r JOIN users u ON u.id = r.user_id
WHERE r.id = $1`, id).Scan(&r.ID, &r.ProductID, &r.UserID, &r.AuthorName, &r.Rating, &r.Comment, &r.CreatedAt)
	return r, err
}
