package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// AddFavorite marks a product as favorite for the user; repeats are no-ops.
func (s *Store) AddFavorite(ctx context.Context, userID, productID pgtype.UUID) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO favorites (user_id, product_id)
VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, productID)
	return err
}

// IsFavorite reports whether the user has favorited the product.
func (s *Store) IsFavorite(ctx context.Context, userID, productID pgtype.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM favorites WHERE user_id = $1 AND product_id = $2)`, userID, productID).Scan(&exists)
	return exists, err
}

// RemoveFavorite unmarks a favorite.
func (s *Store) RemoveFavorite(ctx context.Context, userID, productID pgtype.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListFavorites returns the user's favorite products with effective
// promotions, newest favorite first.
func (s *Store) ListFavorites(ctx context.Context, userID pgtype.UUID) ([]ProductWithPromo, error) {
	sql := `SELECT ` + productColumns + `, ` + promoColumns + `
FROM favorites f
JOIN products p ON p.id = f.product_id
` + effectivePromoJoin + `
WHERE f.user_id = $1
ORDER BY f.created_at DESC`
	rows, err := s.pool.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProductWithPromo
	for rows.Next() {
		item, err := scanProductWithPromo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
