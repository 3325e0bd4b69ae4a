package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type querier interface {
	GetProductByID(ctx context.Context, id pgtype.UUID) (store.ProductWithPromo, error)
	UpsertReview(ctx context.Context, productID, userID pgtype.UUID, rating int32, comment string) (pgtype.UUID, error)
	ListReviewsByProduct(ctx context.Context, productID pgtype.UUID, limit, offset int32) ([]store.Review, error)
	ReviewStats(ctx context.Context, productID pgtype.UUID) (count int64, avg float64, err error)
	GetReview(ctx context.Context, id pgtype.UUID) (store.Review, error)
	DeleteReview(ctx context.Context, id pgtype.UUID) error
}

// Handler serves product review endpoints.
type Handler struct {
	Q querier
}

type reviewPayload struct {
	Rating  int32  `json:"rating"`
	Comment string `json:"comment"`
}

type reviewView struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"productId"`
	AuthorName string     `json:"authorName"`
	Rating     int32      `json:"rating"`
	Comment    string     `json:"comment,omitempty"`
	CreatedAt  *time.Time `json:"createdAt"`
}

func toView(rv store.Review) reviewView {
	v := reviewView{
		ID:         store.UUIDString(rv.ID),
		ProductID:  store.UUIDString(rv.ProductID),
		AuthorName: rv.AuthorName,
		Rating:     rv.Rating,
		Comment:    rv.Comment,
	}
	if rv.CreatedAt.Valid {
		t := rv.CreatedAt.Time
		v.CreatedAt = &t
	}
	return v
}

// Create writes the caller's review for a product. A second review from the
// same user replaces the first.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	uID, err := store.UUIDValue(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	pID, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var req reviewPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "rating must be between 1 and 5", nil)
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
	id, err := h.Q.UpsertReview(r.Context(), pID, uID, req.Rating, strings.TrimSpace(req.Comment))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to save review", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]string{"id": store.UUIDString(id)})
}

// List returns reviews plus aggregate stats for a product.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	pID, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	rows, err := h.Q.ListReviewsByProduct(r.Context(), pID, int32(perPage), int32(common.Offset(page, perPage)))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list reviews", nil)
		return
	}
	count, avg, err := h.Q.ReviewStats(r.Context(), pID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load review stats", nil)
		return
	}
	views := make([]reviewView, 0, len(rows))
	for _, rv := range rows {
		views = append(views, toView(rv))
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"items":         views,
		"count":         count,
		"averageRating": avg,
	})
}

// Delete removes a review. Customers can delete only their own; staff can
// moderate any.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	id, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid review id", nil)
		return
	}
	review, err := h.Q.GetReview(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "review not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load review", nil)
		return
	}
	role, _ := common.Role(r.Context())
	if store.UUIDString(review.UserID) != userID && role != "admin" && role != "staff" {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "cannot delete another user's review", nil)
		return
	}
	if err := h.Q.DeleteReview(r.Context(), id); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete review", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
