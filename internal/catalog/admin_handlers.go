package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type adminQueries interface {
	CreateProduct(ctx context.Context, arg store.UpsertProductParams) (pgtype.UUID, error)
	UpdateProduct(ctx context.Context, id pgtype.UUID, arg store.UpsertProductParams) error
	DeleteProduct(ctx context.Context, id pgtype.UUID) error
	GetProductByID(ctx context.Context, id pgtype.UUID) (store.ProductWithPromo, error)

	ListPromotions(ctx context.Context, limit, offset int32) ([]store.Promotion, error)
	GetPromotion(ctx context.Context, id pgtype.UUID) (store.Promotion, error)
	CreatePromotion(ctx context.Context, arg store.UpsertPromotionParams) (pgtype.UUID, error)
	UpdatePromotion(ctx context.Context, id pgtype.UUID, arg store.UpsertPromotionParams) error
	DeletePromotion(ctx context.Context, id pgtype.UUID) error
}

// AdminHandler exposes the product and promotion management endpoints.
type AdminHandler struct {
	queries  adminQueries
	cache    *Cache
	validate *validator.Validate
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(queries adminQueries, cache *Cache) *AdminHandler {
	return &AdminHandler{queries: queries, cache: cache, validate: validator.New()}
}

type productPayload struct {
	Slug        string   `json:"slug" validate:"required,min=1,max=120"`
	Title       string   `json:"title" validate:"required,min=1,max=200"`
	Description string   `json:"description"`
	Price       int64    `json:"price" validate:"gte=0"`
	CompareAt   *int64   `json:"compareAt" validate:"omitempty,gte=0"`
	Stock       int32    `json:"stock" validate:"gte=0"`
	Category    string   `json:"category" validate:"max=80"`
	Thumbnail   *string  `json:"thumbnail"`
	Images      []string `json:"images" validate:"max=12,dive,max=500"`
	Published   bool     `json:"published"`
	PromotionID *string  `json:"promotionId"`
}

type promotionPayload struct {
	Name           string     `json:"name" validate:"required,min=1,max=120"`
	Kind           string     `json:"kind" validate:"required,oneof=buy_n_pay_m fixed_price"`
	BuySize        int32      `json:"buySize" validate:"omitempty,gte=0"`
	PaidPerSet     int32      `json:"paidPerSet" validate:"omitempty,gte=0"`
	FixedUnitPrice int64      `json:"fixedUnitPrice" validate:"omitempty,gte=0"`
	Active         bool       `json:"active"`
	StartsAt       *time.Time `json:"startsAt"`
	EndsAt         *time.Time `json:"endsAt"`
}

// CreateProduct handles POST /api/v1/admin/products.
func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	params, err := h.decodeProduct(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	id, err := h.queries.CreateProduct(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.invalidate(r.Context(), params.Slug)
	common.JSONData(w, http.StatusCreated, map[string]string{"id": store.UUIDString(id)})
}

// UpdateProduct handles PUT /api/v1/admin/products/{id}.
func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	params, err := h.decodeProduct(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.queries.UpdateProduct(r.Context(), id, params); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.NotFound("product not found"))
			return
		}
		common.WriteError(w, err)
		return
	}
	h.invalidate(r.Context(), params.Slug)
	common.JSONData(w, http.StatusOK, map[string]string{"id": store.UUIDString(id)})
}

// DeleteProduct handles DELETE /api/v1/admin/products/{id}.
func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var slug string
	if product, err := h.queries.GetProductByID(r.Context(), id); err == nil {
		slug = product.Slug
	}
	if err := h.queries.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.NotFound("product not found"))
			return
		}
		common.WriteError(w, err)
		return
	}
	h.invalidate(r.Context(), slug)
	w.WriteHeader(http.StatusNoContent)
}

// ListPromotions handles GET /api/v1/admin/promotions.
func (h *AdminHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	rows, err := h.queries.ListPromotions(r.Context(), int32(perPage), int32(common.Offset(page, perPage)))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, promotionView(row))
	}
	common.JSONData(w, http.StatusOK, out)
}

// CreatePromotion handles POST /api/v1/admin/promotions.
func (h *AdminHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	params, err := h.decodePromotion(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	id, err := h.queries.CreatePromotion(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]string{"id": store.UUIDString(id)})
}

// UpdatePromotion handles PUT /api/v1/admin/promotions/{id}.
func (h *AdminHandler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	params, err := h.decodePromotion(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.queries.UpdatePromotion(r.Context(), id, params); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.NotFound("promotion not found"))
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]string{"id": store.UUIDString(id)})
}

// DeletePromotion handles DELETE /api/v1/admin/promotions/{id}.
func (h *AdminHandler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.queries.DeletePromotion(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.NotFound("promotion not found"))
			return
		}
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type promotionPreviewRequest struct {
	promotionPayload
	UnitPrice int64 `json:"unitPrice" validate:"gte=0"`
	Qty       int   `json:"qty" validate:"gte=0"`
}

// PreviewPromotion handles POST /api/v1/admin/promotions/preview: it
// prices a hypothetical line with the candidate promotion so admins see
// the label and totals buyers would see, without persisting anything.
func (h *AdminHandler) PreviewPromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.BadRequest("invalid json body", nil))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.WriteError(w, common.BadRequest("validation failed", validationDetails(err)))
		return
	}
	p := &promo.Promotion{
		Kind:           promo.Kind(req.Kind),
		BuySize:        int(req.BuySize),
		PaidPerSet:     int(req.PaidPerSet),
		FixedUnitPrice: req.FixedUnitPrice,
		Active:         true,
	}
	line := promo.LineItem{UnitPrice: req.UnitPrice, Qty: req.Qty, Promo: p}
	common.JSONData(w, http.StatusOK, PricePreview{
		Qty:          req.Qty,
		UnitPrice:    req.UnitPrice,
		PayableUnits: line.PayableUnits(),
		LineTotal:    line.Total(),
		PromoLabel:   p.Label(req.UnitPrice),
	})
}

func (h *AdminHandler) decodeProduct(r *http.Request) (store.UpsertProductParams, error) {
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return store.UpsertProductParams{}, common.BadRequest("invalid json body", nil)
	}
	if err := h.validate.Struct(payload); err != nil {
		return store.UpsertProductParams{}, common.BadRequest("validation failed", validationDetails(err))
	}
	params := store.UpsertProductParams{
		Slug:        payload.Slug,
		Title:       payload.Title,
		Description: payload.Description,
		Price:       payload.Price,
		CompareAt:   payload.CompareAt,
		Stock:       payload.Stock,
		Category:    strings.TrimSpace(payload.Category),
		Thumbnail:   payload.Thumbnail,
		Images:      payload.Images,
		Published:   payload.Published,
	}
	if payload.PromotionID != nil && *payload.PromotionID != "" {
		id, err := store.UUIDValue(*payload.PromotionID)
		if err != nil {
			return store.UpsertProductParams{}, common.BadRequest("promotionId must be a UUID", nil)
		}
		params.PromotionID = id
	}
	return params, nil
}

func (h *AdminHandler) decodePromotion(r *http.Request) (store.UpsertPromotionParams, error) {
	var payload promotionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return store.UpsertPromotionParams{}, common.BadRequest("invalid json body", nil)
	}
	if err := h.validate.Struct(payload); err != nil {
		return store.UpsertPromotionParams{}, common.BadRequest("validation failed", validationDetails(err))
	}
	switch promo.Kind(payload.Kind) {
	case promo.KindBuyNPayM:
		if payload.BuySize < 2 || payload.PaidPerSet < 0 || payload.PaidPerSet > payload.BuySize {
			return store.UpsertPromotionParams{}, common.BadRequest("buySize must be >= 2 and paidPerSet within [0, buySize]", nil)
		}
	case promo.KindFixedPrice:
		if payload.FixedUnitPrice < 0 {
			return store.UpsertPromotionParams{}, common.BadRequest("fixedUnitPrice must not be negative", nil)
		}
	}
	if payload.StartsAt != nil && payload.EndsAt != nil && payload.EndsAt.Before(*payload.StartsAt) {
		return store.UpsertPromotionParams{}, common.BadRequest("endsAt must not precede startsAt", nil)
	}
	return store.UpsertPromotionParams{
		Name:           payload.Name,
		Kind:           payload.Kind,
		BuySize:        payload.BuySize,
		PaidPerSet:     payload.PaidPerSet,
		FixedUnitPrice: payload.FixedUnitPrice,
		Active:         payload.Active,
		StartsAt:       payload.StartsAt,
		EndsAt:         payload.EndsAt,
	}, nil
}

func (h *AdminHandler) invalidate(ctx context.Context, slug string) {
	keys := []string{"catalog:products:list:popular"}
	if slug != "" {
		keys = append(keys, detailCacheKey(slug))
	}
	_ = h.cache.Invalidate(ctx, keys...)
}

func promotionView(row store.Promotion) map[string]any {
	out := map[string]any{
		"id":     store.UUIDString(row.ID),
		"name":   row.Name,
		"kind":   row.Kind,
		"active": row.Active,
	}
	switch promo.Kind(row.Kind) {
	case promo.KindBuyNPayM:
		out["buySize"] = row.BuySize
		out["paidPerSet"] = row.PaidPerSet
	case promo.KindFixedPrice:
		out["fixedUnitPrice"] = row.FixedUnitPrice
	}
	if row.StartsAt.Valid {
		out["startsAt"] = row.StartsAt.Time
	}
	if row.EndsAt.Valid {
		out["endsAt"] = row.EndsAt.Time
	}
	return out
}

func parseID(r *http.Request) (pgtype.UUID, error) {
	id, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		return pgtype.UUID{}, common.BadRequest("id must be a UUID", nil)
	}
	return id, nil
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}
