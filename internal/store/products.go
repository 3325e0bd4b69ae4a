package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Product mirrors one products row.
type Product struct {
	ID          pgtype.UUID
	Slug        string
	Title       string
	Description string
	Price       int64
	CompareAt   pgtype.Int8
	Stock       int32
	Category    string
	Thumbnail   pgtype.Text
	Images      []string
	Published   bool
	PromotionID pgtype.UUID
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// ProductWithPromo joins a product with its currently effective
// promotion, if any. The effectiveness predicate (active and inside the
// date window) is applied in SQL so downstream pricing never has to
// re-check dates.
type ProductWithPromo struct {
	Product
	Promo *Promotion
}

const productColumns = `p.id, p.slug, p.title, p.description, p.price, p.compare_at, p.stock, p.category, p.thumbnail, p.images, p.published, p.promotion_id, p.created_at, p.updated_at`

const effectivePromoJoin = `LEFT JOIN promotions pr
    ON pr.id = p.promotion_id
   AND pr.active
   AND (pr.starts_at IS NULL OR pr.starts_at <= now())
   AND (pr.ends_at IS NULL OR pr.ends_at >= now())`

const promoColumns = `pr.id, pr.name, pr.kind, pr.buy_size, pr.paid_per_set, pr.fixed_unit_price, pr.active, pr.starts_at, pr.ends_at`

// ListProductsParams captures the public listing filters.
type ListProductsParams struct {
	Query    string
	Category string
	MinPrice *int64
	MaxPrice *int64
	InStock  *bool
	Sort     string
	Limit    int32
	Offset   int32
}

func (p ListProductsParams) where() (string, []any) {
	clauses := []string{"p.published"}
	var args []any
	if q := strings.TrimSpace(p.Query); q != "" {
		args = append(args, "%"+q+"%")
		clauses = append(clauses, fmt.Sprintf("p.title ILIKE $%d", len(args)))
	}
	if c := strings.TrimSpace(p.Category); c != "" {
		args = append(args, c)
		clauses = append(clauses, fmt.Sprintf("p.category = $%d", len(args)))
	}
	if p.MinPrice != nil {
		args = append(args, *p.MinPrice)
		clauses = append(clauses, fmt.Sprintf("p.price >= $%d", len(args)))
	}
	if p.MaxPrice != nil {
		args = append(args, *p.MaxPrice)
		clauses = append(clauses, fmt.Sprintf("p.price <= $%d", len(args)))
	}
	if p.InStock != nil {
		if *p.InStock {
			clauses = append(clauses, "p.stock > 0")
		} else {
			clauses = append(clauses, "p.stock = 0")
		}
	}
	return strings.Join(clauses, " AND "), args
}

func (p ListProductsParams) orderBy() string {
	switch p.Sort {
	case "price:asc":
		return "p.price ASC, p.slug ASC"
	case "price:desc":
		return "p.price DESC, p.slug ASC"
	case "title:asc":
		return "p.title ASC"
	case "title:desc":
		return "p.title DESC"
	default:
		return "p.created_at DESC"
	}
}

// CountProducts returns the number of published products matching the filters.
func (s *Store) CountProducts(ctx context.Context, params ListProductsParams) (int64, error) {
	where, args := params.where()
	var total int64
	err := s.pool.QueryRow(ctx, "SELECT count(*) FROM products p WHERE "+where, args...).Scan(&total)
	return total, err
}

// ListProducts returns a filtered page of published products with their
// effective promotions.
func (s *Store) ListProducts(ctx context.Context, params ListProductsParams) ([]ProductWithPromo, error) {
	where, args := params.where()
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, params.Offset)
	sql := fmt.Sprintf(`SELECT %s, %s
FROM products p
%s
WHERE %s
ORDER BY %s
LIMIT $%d OFFSET $%d`, productColumns, promoColumns, effectivePromoJoin, where, params.orderBy(), len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
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

// GetProductBySlug fetches a published product and its effective promotion.
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (ProductWithPromo, error) {
	sql := fmt.Sprintf(`SELECT %s, %s
FROM products p
%s
WHERE p.slug = $1 AND p.published`, productColumns, promoColumns, effectivePromoJoin)
	return scanProductWithPromo(s.pool.QueryRow(ctx, sql, slug))
}

// GetProductByID fetches a product regardless of publication state.
func (s *Store) GetProductByID(ctx context.Context, id pgtype.UUID) (ProductWithPromo, error) {
	sql := fmt.Sprintf(`SELECT %s, %s
FROM products p
%s
WHERE p.id = $1`, productColumns, promoColumns, effectivePromoJoin)
	return scanProductWithPromo(s.pool.QueryRow(ctx, sql, id))
}

// ListProductsByIDs fetches products with effective promotions for the
// given identifiers. Missing identifiers are silently absent from the
// result; callers decide whether that is an error.
func (s *Store) ListProductsByIDs(ctx context.Context, ids []pgtype.UUID) ([]ProductWithPromo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql := fmt.Sprintf(`SELECT %s, %s
FROM products p
%s
WHERE p.id = ANY($1)`, productColumns, promoColumns, effectivePromoJoin)
	rows, err := s.pool.Query(ctx, sql, ids)
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

// UpsertProductParams carries the admin create/update payload.
type UpsertProductParams struct {
	Slug        string
	Title       string
	Description string
	Price       int64
	CompareAt   *int64
	Stock       int32
	Category    string
	Thumbnail   *string
	Images      []string
	Published   bool
	PromotionID pgtype.UUID
}

// CreateProduct inserts a product and returns its identifier.
func (s *Store) CreateProduct(ctx context.Context, arg UpsertProductParams) (pgtype.UUID, error) {
	var id pgtype.UUID
	err := s.pool.QueryRow(ctx, `INSERT INTO products (slug, title, description, price, compare_at, stock, category, thumbnail, images, published, promotion_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`,
		arg.Slug, arg.Title, arg.Description, arg.Price, arg.CompareAt, arg.Stock, arg.Category, textOrNil(arg.Thumbnail), imagesValue(arg.Images), arg.Published, arg.PromotionID,
	).Scan(&id)
	return id, err
}

// UpdateProduct replaces the mutable columns of a product.
func (s *Store) UpdateProduct(ctx context.Context, id pgtype.UUID, arg UpsertProductParams) error {
	tag, err := s.pool.Exec(ctx, `UPDATE products
SET slug = $2, title = $3, description = $4, price = $5, compare_at = $6, stock = $7, category = $8, thumbnail = $9, images = $10, published = $11, promotion_id = $12, updated_at = now()
WHERE id = $1`,
		id, arg.Slug, arg.Title, arg.Description, arg.Price, arg.CompareAt, arg.Stock, arg.Category, textOrNil(arg.Thumbnail), imagesValue(arg.Images), arg.Published, arg.PromotionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(ctx context.Context, id pgtype.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// imagesValue keeps NOT NULL happy when the caller passes a nil slice.
func imagesValue(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

// DecrementStock reserves stock inside the checkout transaction. It
// fails with ErrNoRows when the remaining stock is insufficient.
func DecrementStock(ctx context.Context, tx pgx.Tx, id pgtype.UUID, qty int32) error {
	tag, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanProductWithPromo(row pgx.Row) (ProductWithPromo, error) {
	var (
		out ProductWithPromo

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
	err := row.Scan(
		&out.ID, &out.Slug, &out.Title, &out.Description, &out.Price, &out.CompareAt,
		&out.Stock, &out.Category, &out.Thumbnail, &out.Images, &out.Published, &out.PromotionID, &out.CreatedAt, &out.UpdatedAt,
		&promoID, &promoName, &promoKind, &buySize, &paidPerSet, &fixedUnitPrice, &promoActive, &startsAt, &endsAt,
	)
	if err != nil {
		return ProductWithPromo{}, err
	}
	if promoID.Valid {
		out.Promo = &Promotion{
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
	return out, nil
}
