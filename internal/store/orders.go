package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Order mirrors one orders row. Totals are immutable once written; the
// promotion math that produced them is never re-run against an order.
type Order struct {
	ID              pgtype.UUID
	UserID          pgtype.UUID
	Email           string
	Status          string
	Subtotal        int64
	PromoDiscount   int64
	VoucherCode     pgtype.Text
	VoucherDiscount int64
	Tax             int64
	ShippingFee     int64
	Total           int64
	ShippingAddress []byte
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// OrderItem is a priced line snapshot frozen at checkout time.
type OrderItem struct {
	ID           pgtype.UUID
	OrderID      pgtype.UUID
	ProductID    pgtype.UUID
	Title        string
	Selector     string
	UnitPrice    int64
	Qty          int32
	PayableUnits int32
	LineTotal    int64
	PromoLabel   pgtype.Text
}

const orderColumns = `id, user_id, email, status, subtotal, promo_discount, voucher_code, voucher_discount, tax, shipping_fee, total, shipping_address, created_at, updated_at`

// InsertOrderParams carries the checkout snapshot.
type InsertOrderParams struct {
	UserID          pgtype.UUID
	Email           string
	Subtotal        int64
	PromoDiscount   int64
	VoucherCode     *string
	VoucherDiscount int64
	Tax             int64
	ShippingFee     int64
	Total           int64
	ShippingAddress []byte
}

// InsertOrderTx creates the order row inside the checkout transaction.
func InsertOrderTx(ctx context.Context, tx pgx.Tx, arg InsertOrderParams) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := tx.QueryRow(ctx, `INSERT INTO orders (user_id, email, subtotal, promo_discount, voucher_code, voucher_discount, tax, shipping_fee, total, shipping_address)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id`,
		arg.UserID, arg.Email, arg.Subtotal, arg.PromoDiscount, textOrNil(arg.VoucherCode), arg.VoucherDiscount, arg.Tax, arg.ShippingFee, arg.Total, arg.ShippingAddress,
	).Scan(&id)
	return id, err
}

// InsertOrderItemParams carries one frozen line.
type InsertOrderItemParams struct {
	ProductID    pgtype.UUID
	Title        string
	Selector     string
	UnitPrice    int64
	Qty          int32
	PayableUnits int32
	LineTotal    int64
	PromoLabel   *string
}

// InsertOrderItemTx snapshots one priced line inside the checkout transaction.
func InsertOrderItemTx(ctx context.Context, tx pgx.Tx, orderID pgtype.UUID, arg InsertOrderItemParams) error {
	_, err := tx.Exec(ctx, `INSERT INTO order_items (order_id, product_id, title, selector, unit_price, qty, payable_units, line_total, promo_label)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		orderID, arg.ProductID, arg.Title, arg.Selector, arg.UnitPrice, arg.Qty, arg.PayableUnits, arg.LineTotal, textOrNil(arg.PromoLabel))
	return err
}

// GetOrder fetches an order by identifier.
func (s *Store) GetOrder(ctx context.Context, id pgtype.UUID) (Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.UserID, &o.Email, &o.Status, &o.Subtotal, &o.PromoDiscount, &o.VoucherCode, &o.VoucherDiscount, &o.Tax, &o.ShippingFee, &o.Total, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// ListOrderItems returns the frozen lines of an order.
func (s *Store) ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]OrderItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, order_id, product_id, title, selector, unit_price, qty, payable_units, line_total, promo_label
FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Title, &it.Selector, &it.UnitPrice, &it.Qty, &it.PayableUnits, &it.LineTotal, &it.PromoLabel); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ListOrdersByUser returns the user's orders, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID pgtype.UUID, limit, offset int32) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// CountOrdersByUser counts the user's orders for list pagination.
func (s *Store) CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total)
	return total, err
}

// ListOrdersAdmin returns orders optionally filtered by status.
func (s *Store) ListOrdersAdmin(ctx context.Context, status string, limit, offset int32) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// CountOrdersAdmin counts orders for the admin listing.
func (s *Store) CountOrdersAdmin(ctx context.Context, status string) (int64, error) {
	var total int64
	var err error
	if status == "" {
		err = s.pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&total)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE status = $1`, status).Scan(&total)
	}
	return total, err
}

// TransitionOrderStatus moves the order from one status to another
// atomically; ErrNoRows means the order was not in the expected source
// status (or does not exist).
func (s *Store) TransitionOrderStatus(ctx context.Context, id pgtype.UUID, from, to string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Email, &o.Status, &o.Subtotal, &o.PromoDiscount, &o.VoucherCode, &o.VoucherDiscount, &o.Tax, &o.ShippingFee, &o.Total, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
