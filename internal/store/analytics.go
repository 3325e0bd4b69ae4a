package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// SalesDay aggregates paid order volume for one calendar day.
type SalesDay struct {
	Day     time.Time `json:"day"`
	Orders  int64     `json:"orders"`
	Revenue int64     `json:"revenue"`
}

// TopProduct aggregates units sold and revenue per product.
type TopProduct struct {
	ProductID pgtype.UUID `json:"productId"`
	Title     string      `json:"title"`
	Slug      string      `json:"slug"`
	UnitsSold int64       `json:"unitsSold"`
	Revenue   int64       `json:"revenue"`
}

// SalesDailyRange aggregates orders per day between from (inclusive)
// and to (exclusive). Orders that never reached PAID are excluded, so
// the revenue column reflects money actually collected.
func (s *Store) SalesDailyRange(ctx context.Context, from, to time.Time) ([]SalesDay, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT date_trunc('day', created_at)::date AS day,
		       count(*) AS orders,
		       coalesce(sum(total), 0) AS revenue
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		  AND status NOT IN ('PENDING_PAYMENT', 'CANCELED')
		GROUP BY day
		ORDER BY day`,
		pgtype.Timestamptz{Time: from, Valid: true},
		pgtype.Timestamptz{Time: to, Valid: true},
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalesDay
	for rows.Next() {
		var d SalesDay
		if err := rows.Scan(&d.Day, &d.Orders, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// TopProducts ranks products by units sold across paid orders.
func (s *Store) TopProducts(ctx context.Context, limit, offset int32) ([]TopProduct, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT oi.product_id, oi.title, coalesce(p.slug, ''),
		       sum(oi.qty)::bigint AS units_sold,
		       sum(oi.line_total)::bigint AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE o.status NOT IN ('PENDING_PAYMENT', 'CANCELED')
		GROUP BY oi.product_id, oi.title, p.slug
		ORDER BY units_sold DESC, revenue DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TopProduct
	for rows.Next() {
		var t TopProduct
		if err := rows.Scan(&t.ProductID, &t.Title, &t.Slug, &t.UnitsSold, &t.Revenue); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
