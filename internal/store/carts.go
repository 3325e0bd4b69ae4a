package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Cart mirrors one carts row. Guest carts carry a token and no user;
// authenticated carts the inverse.
type Cart struct {
	ID          pgtype.UUID
	UserID      pgtype.UUID
	Token       pgtype.Text
	VoucherCode pgtype.Text
	UpdatedAt   pgtype.Timestamptz
	ExpiresAt   pgtype.Timestamptz
}

// CartLine joins a cart item with the product and effective promotion
// needed to price it.
type CartLine struct {
	ItemID   pgtype.UUID
	Selector string
	Qty      int32
	Product  ProductWithPromo
}

const cartColumns = `id, user_id, token, voucher_code, updated_at, expires_at`

// GetCartByUser fetches the cart owned by the user.
func (s *Store) GetCartByUser(ctx context.Context, userID pgtype.UUID) (Cart, error) {
	var c Cart
	err := s.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`, userID).
		Scan(&c.ID, &c.UserID, &c.Token, &c.VoucherCode, &c.UpdatedAt, &c.ExpiresAt)
	return c, err
}

// GetCartByToken fetches a guest cart by its opaque token, ignoring
// expired carts.
func (s *Store) GetCartByToken(ctx context.Context, token string) (Cart, error) {
	var c Cart
	err := s.pool.QueryRow(ctx, `SELECT `+cartColumns+` FROM carts
WHERE token = $1 AND expires_at > now()`, token).
		Scan(&c.ID, &c.UserID, &c.Token, &c.VoucherCode, &c.UpdatedAt, &c.ExpiresAt)
	return c, err
}

// CreateCart inserts a cart for either a user or a guest token.
func (s *Store) CreateCart(ctx context.Context, userID pgtype.UUID, token *string, ttl time.Duration) (Cart, error) {
	var c Cart
	err := s.pool.QueryRow(ctx, `INSERT INTO carts (user_id, token, expires_at)
VALUES ($1, $2, now() + $3)
RETURNING `+cartColumns, userID, textOrNil(token), ttl).
		Scan(&c.ID, &c.UserID, &c.Token, &c.VoucherCode, &c.UpdatedAt, &c.ExpiresAt)
	return c, err
}

// TouchCart extends the cart's lifetime on every interaction.
func (s *Store) TouchCart(ctx context.Context, cartID pgtype.UUID, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx, `UPDATE carts SET updated_at = now(), expires_at = now() + $2 WHERE id = $1`, cartID, ttl)
	return err
}

// SetCartVoucher attaches or clears the cart's applied voucher code.
func (s *Store) SetCartVoucher(ctx context.Context, cartID pgtype.UUID, code *string) error {
	_, err := s.pool.Exec(ctx, `UPDATE carts SET voucher_code = $2, updated_at = now() WHERE id = $1`, cartID, textOrNil(code))
	return err
}

// UpsertCartItem sets the quantity for a line, overwriting any previous
// quantity (last write wins). The selector (color or variant) is part of
// the line identity, so the same product can appear once per selector.
func (s *Store) UpsertCartItem(ctx context.Context, cartID, productID pgtype.UUID, selector string, qty int32) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO cart_items (cart_id, product_id, selector, qty)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, product_id, selector) DO UPDATE SET qty = EXCLUDED.qty`, cartID, productID, selector, qty)
	return err
}

// AddCartItemQty increments the quantity for a line, inserting it when
// absent. Used by cart merge.
func (s *Store) AddCartItemQty(ctx context.Context, cartID, productID pgtype.UUID, selector string, qty int32) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO cart_items (cart_id, product_id, selector, qty)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, product_id, selector) DO UPDATE SET qty = cart_items.qty + EXCLUDED.qty`, cartID, productID, selector, qty)
	return err
}

// RemoveCartItem deletes a line from the cart.
func (s *Store) RemoveCartItem(ctx context.Context, cartID, productID pgtype.UUID, selector string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2 AND selector = $3`, cartID, productID, selector)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ClearCart removes every line from the cart.
func (s *Store) ClearCart(ctx context.Context, cartID pgtype.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

// DeleteCart removes the cart and, via cascade, its lines.
func (s *Store) DeleteCart(ctx context.Context, cartID pgtype.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	return err
}

// ListCartLines returns the cart's lines joined with product data and
// the effective promotion, in insertion order.
func (s *Store) ListCartLines(ctx context.Context, cartID pgtype.UUID) ([]CartLine, error) {
	sql := `SELECT ci.id, ci.selector, ci.qty, ` + productColumns + `, ` + promoColumns + `
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
` + effectivePromoJoin + `
WHERE ci.cart_id = $1
ORDER BY ci.id`
	rows, err := s.pool.Query(ctx, sql, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartLine
	for rows.Next() {
		line, err := scanCartLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func scanCartLine(row pgx.Row) (CartLine, error) {
	var (
		line CartLine

		promoID        pgtype.UUID
		promoName      pgtype.Text
		promoKind      pgtype.Text
		buySize        pgtype.Int4
		paidPerSet     pgtype.Int4
		fixedUnitPrice pgtype.Int8
		promoActive    pgtype.Bool
		startsAt       pgtype.Timestamptz
		endsAt         pgtype.Timestamptz
	)
	p := &line.Product
	err := row.Scan(
		&line.ItemID, &line.Selector, &line.Qty,
		&p.ID, &p.Slug, &p.Title, &p.Description, &p.Price, &p.CompareAt,
		&p.Stock, &p.Category, &p.Thumbnail, &p.Images, &p.Published, &p.PromotionID, &p.CreatedAt, &p.UpdatedAt,
		&promoID, &promoName, &promoKind, &buySize, &paidPerSet, &fixedUnitPrice, &promoActive, &startsAt, &endsAt,
	)
	if err != nil {
		return CartLine{}, err
	}
	if promoID.Valid {
		p.Promo = &Promotion{
			ID:             promoID,
			Name:           promoName.String,
			Kind:           promoKind.String,
			BuySize:        buySize.Int32,
			PaidPerSet:     paidPerSet.Int32,
			FixedUnitPrice: fixedUnitPrice.Int64,
			Active:         promoActive.Bool,
			StartsAt:       startsAt,
			EndsAt:         endsAt,
		}
	}
	return line, nil
}

// PurgeExpiredCarts drops guest carts past their expiry, returning the
// number removed. Run periodically by the worker.
func (s *Store) PurgeExpiredCarts(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM carts WHERE user_id IS NULL AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
