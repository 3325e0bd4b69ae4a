package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type queryProvider interface {
	CountProducts(ctx context.Context, params store.ListProductsParams) (int64, error)
	ListProducts(ctx context.Context, params store.ListProductsParams) ([]store.ProductWithPromo, error)
	GetProductBySlug(ctx context.Context, slug string) (store.ProductWithPromo, error)
	ReviewStats(ctx context.Context, productID pgtype.UUID) (int64, float64, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultPage  int
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultPage  int
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	MinPrice *int64
	MaxPrice *int64
	InStock  *bool
	Sort     string
	Page     int
	Limit    int
}

// PromotionInfo is the public promotion payload attached to a product.
type PromotionInfo struct {
	Kind           string `json:"kind"`
	BuySize        int    `json:"buySize,omitempty"`
	PaidPerSet     int    `json:"paidPerSet,omitempty"`
	FixedUnitPrice *int64 `json:"fixedUnitPrice,omitempty"`
	Label          string `json:"label,omitempty"`
}

// ProductListItem represents an entry in list responses.
type ProductListItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Slug       string  `json:"slug"`
	Price      int64   `json:"price"`
	CompareAt  *int64  `json:"compareAt,omitempty"`
	InStock    bool    `json:"inStock"`
	Category   string  `json:"category,omitempty"`
	Thumbnail  *string `json:"thumbnail,omitempty"`
	PromoLabel string  `json:"promoLabel,omitempty"`
}

// Rating aggregates review stats for the detail payload.
type Rating struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

// ProductDetail aggregates the full detail payload.
type ProductDetail struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Slug        string         `json:"slug"`
	Description string         `json:"description"`
	Price       int64          `json:"price"`
	CompareAt   *int64         `json:"compareAt,omitempty"`
	InStock     bool           `json:"inStock"`
	Stock       int            `json:"stock"`
	Category    string         `json:"category,omitempty"`
	Thumbnail   *string        `json:"thumbnail,omitempty"`
	Images      []string       `json:"images,omitempty"`
	Promotion   *PromotionInfo `json:"promotion,omitempty"`
	Rating      Rating         `json:"rating"`
}

// PricePreview is the live quantity-based preview served alongside the
// product detail page. UnitsToUnlock is how many more units the buyer
// must add before a buy-N-pay-M promotion starts applying; zero when
// already applying or not applicable.
type PricePreview struct {
	Qty           int    `json:"qty"`
	UnitPrice     int64  `json:"unitPrice"`
	PayableUnits  int    `json:"payableUnits"`
	LineTotal     int64  `json:"lineTotal"`
	PromoLabel    string `json:"promoLabel,omitempty"`
	UnitsToUnlock int    `json:"unitsToUnlock,omitempty"`
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []ProductListItem
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultPage := cfg.DefaultPage
	if defaultPage < 1 {
		defaultPage = 1
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultPage:  defaultPage,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  s.defaultPage,
		Limit: s.defaultLimit,
	}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}

	limit := s.defaultLimit
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		limit = l
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	params.Limit = limit

	if v := strings.TrimSpace(values.Get("minPrice")); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return params, badRequest("minPrice", "minPrice must be a valid integer", err)
		}
		params.MinPrice = &parsed
	}
	if v := strings.TrimSpace(values.Get("maxPrice")); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return params, badRequest("maxPrice", "maxPrice must be a valid integer", err)
		}
		params.MaxPrice = &parsed
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return params, badRequest("price", "minPrice cannot be greater than maxPrice", fmt.Errorf("invalid price range"))
	}

	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, badRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = &b
	}

	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// ListProducts returns filtered product list with pagination metadata.
// Promotion badges come from the same engine that prices carts.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	key, shouldUseCache := s.listCacheKey(params)
	if shouldUseCache && s.cache != nil {
		var cached cachedList
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return ProductListResult{Items: cached.Items, Total: cached.Total, Page: params.Page, Limit: params.Limit}, nil
		}
	}

	storeParams := store.ListProductsParams{
		Query:    params.Query,
		Category: params.Category,
		MinPrice: params.MinPrice,
		MaxPrice: params.MaxPrice,
		InStock:  params.InStock,
		Sort:     params.Sort,
		Limit:    int32(params.Limit),
		Offset:   int32(common.Offset(params.Page, params.Limit)),
	}
	total, err := s.queries.CountProducts(ctx, storeParams)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("count products: %w", err)
	}
	rows, err := s.queries.ListProducts(ctx, storeParams)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	items := make([]ProductListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toListItem(row))
	}
	result := ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	if shouldUseCache && s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, cachedList{Items: items, Total: total})
	}
	return result, nil
}

// GetProductDetail returns the detail payload including the effective
// promotion and review stats.
func (s *Service) GetProductDetail(ctx context.Context, slug string) (ProductDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductDetail{}, badRequest("slug", "slug is required", nil)
	}
	cacheKey := detailCacheKey(slug)
	if s.cache != nil {
		var cached ProductDetail
		ok, err := s.cache.GetJSON(ctx, cacheKey, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	product, err := s.queries.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductDetail{}, common.NotFound("product not found")
		}
		return ProductDetail{}, fmt.Errorf("get product by slug: %w", err)
	}
	detail := ProductDetail{
		ID:          store.UUIDString(product.ID),
		Title:       product.Title,
		Slug:        product.Slug,
		Description: product.Description,
		Price:       product.Price,
		InStock:     product.Stock > 0,
		Stock:       int(product.Stock),
		Category:    product.Category,
		Images:      product.Images,
	}
	if product.CompareAt.Valid {
		compareAt := product.CompareAt.Int64
		detail.CompareAt = &compareAt
	}
	if product.Thumbnail.Valid {
		thumb := product.Thumbnail.String
		detail.Thumbnail = &thumb
	}
	detail.Promotion = toPromotionInfo(product)
	count, avg, err := s.queries.ReviewStats(ctx, product.ID)
	if err == nil {
		detail.Rating = Rating{Count: count, Average: avg}
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, cacheKey, detail)
	}
	return detail, nil
}

// PreviewPrice computes the live line preview for a quantity of one
// product. It delegates to the same engine that totals carts so the
// preview and the eventual cart line can never diverge.
func (s *Service) PreviewPrice(ctx context.Context, slug string, qty int) (PricePreview, error) {
	if qty < 0 {
		return PricePreview{}, badRequest("qty", "qty must not be negative", nil)
	}
	product, err := s.queries.GetProductBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PricePreview{}, common.NotFound("product not found")
		}
		return PricePreview{}, fmt.Errorf("get product by slug: %w", err)
	}
	line := product.PricingLine(qty)
	preview := PricePreview{
		Qty:          qty,
		UnitPrice:    product.Price,
		PayableUnits: line.PayableUnits(),
		LineTotal:    line.Total(),
	}
	if p := line.Promo; p != nil {
		preview.PromoLabel = p.Label(product.Price)
		if p.Kind == promo.KindBuyNPayM && qty > 0 && qty < p.BuySize {
			preview.UnitsToUnlock = p.BuySize - qty
		}
	}
	return preview, nil
}

func toListItem(row store.ProductWithPromo) ProductListItem {
	item := ProductListItem{
		ID:       store.UUIDString(row.ID),
		Title:    row.Title,
		Slug:     row.Slug,
		Price:    row.Price,
		InStock:  row.Stock > 0,
		Category: row.Category,
	}
	if row.CompareAt.Valid {
		compareAt := row.CompareAt.Int64
		item.CompareAt = &compareAt
	}
	if row.Thumbnail.Valid {
		thumb := row.Thumbnail.String
		item.Thumbnail = &thumb
	}
	if p := row.Promo.Pricing(); p != nil {
		item.PromoLabel = p.Label(row.Price)
	}
	return item
}

func toPromotionInfo(row store.ProductWithPromo) *PromotionInfo {
	p := row.Promo.Pricing()
	if p == nil {
		return nil
	}
	info := &PromotionInfo{
		Kind:  string(p.Kind),
		Label: p.Label(row.Price),
	}
	switch p.Kind {
	case promo.KindBuyNPayM:
		info.BuySize = p.BuySize
		info.PaidPerSet = p.PaidPerSet
	case promo.KindFixedPrice:
		fixed := p.FixedUnitPrice
		info.FixedUnitPrice = &fixed
	}
	return info
}

type cachedList struct {
	Items []ProductListItem `json:"items"`
	Total int64             `json:"total"`
}

func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Page != s.defaultPage {
		return "", false
	}
	if params.Limit != s.defaultLimit {
		return "", false
	}
	if params.Query != "" || params.Category != "" || params.MinPrice != nil || params.MaxPrice != nil || params.InStock != nil || params.Sort != "" {
		return "", false
	}
	return "catalog:products:list:popular", true
}

func detailCacheKey(slug string) string {
	return "catalog:products:detail:" + slug
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", value)
	}
}

func normalizeSort(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "price:asc", "price:desc", "title:asc", "title:desc":
		return s
	default:
		return ""
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}
