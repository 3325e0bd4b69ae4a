package favorites

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type querier interface {
	GetProductByID(ctx context.Context, id pgtype.UUID) (store.ProductWithPromo, error)
	AddFavorite(ctx context.Context, userID, productID pgtype.UUID) error
	RemoveFavorite(ctx context.Context, userID, productID pgtype.UUID) error
	ListFavorites(ctx context.Context, userID pgtype.UUID) ([]store.ProductWithPromo, error)
	IsFavorite(ctx context.Context, userID, productID pgtype.UUID) (bool, error)
}

// Handler serves the caller's favorite products.
type Handler struct {
	Q querier
}

type favoriteView struct {
	ID         string  `json:"id"`
	Slug       string  `json:"slug"`
	Title      string  `json:"title"`
	Price      int64   `json:"price"`
	InStock    bool    `json:"inStock"`
	Thumbnail  *string `json:"thumbnail,omitempty"`
	PromoLabel string  `json:"promoLabel,omitempty"`
}

func toFavoriteView(p store.ProductWithPromo) favoriteView {
	v := favoriteView{
		ID:      store.UUIDString(p.ID),
		Slug:    p.Slug,
		Title:   p.Title,
		Price:   p.Price,
		InStock: p.Stock > 0,
	}
	if p.Thumbnail.Valid {
		s := p.Thumbnail.String
		v.Thumbnail = &s
	}
	if pr := p.Promo.Pricing(); pr != nil {
		v.PromoLabel = pr.Label(p.Price)
	}
	return v
}

// List returns the caller's favorites with live pricing labels.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	uID, ok := authedUser(w, r)
	if !ok {
		return
	}
	rows, err := h.Q.ListFavorites(r.Context(), uID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list favorites", nil)
		return
	}
	views := make([]favoriteView, 0, len(rows))
	for _, p := range rows {
		views = append(views, toFavoriteView(p))
	}
	common.JSONData(w, http.StatusOK, views)
}

// Add marks a product as a favorite. Adding twice is a no-op.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	uID, ok := authedUser(w, r)
	if !ok {
		return
	}
	pID, err := store.UUIDValue(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if _, err := h.Q.GetProductByID(r.Context(), pID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load product", nil)
		return
	}
	if err := h.Q.AddFavorite(r.Context(), uID, pID); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to add favorite", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Check reports whether the product is in the caller's favorites.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	uID, ok := authedUser(w, r)
	if !ok {
		return
	}
	pID, err := store.UUIDValue(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	favorited, err := h.Q.IsFavorite(r.Context(), uID, pID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to check favorite", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]bool{"favorited": favorited})
}

// Remove unmarks a favorite.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	uID, ok := authedUser(w, r)
	if !ok {
		return
	}
	pID, err := store.UUIDValue(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Q.RemoveFavorite(r.Context(), uID, pID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "favorite not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to remove favorite", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func authedUser(w http.ResponseWriter, r *http.Request) (pgtype.UUID, bool) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return pgtype.UUID{}, false
	}
	uID, err := store.UUIDValue(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return pgtype.UUID{}, false
	}
	return uID, true
}
