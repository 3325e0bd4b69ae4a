package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

type adminQueries interface {
	GetVoucherByCode(ctx context.Context, code string) (store.Voucher, error)
	CreateVoucher(ctx context.Context, arg store.UpsertVoucherParams) (pgtype.UUID, error)
	ListVouchers(ctx context.Context, limit, offset int32) ([]store.Voucher, error)
	SetVoucherActive(ctx context.Context, id pgtype.UUID, active bool) error
}

// Handler exposes administrative voucher management endpoints.
type Handler struct {
	Q   adminQueries
	Now func() time.Time
}

type voucherPayload struct {
	Code        string     `json:"code"`
	Kind        string     `json:"kind"`
	Value       int64      `json:"value"`
	MinSubtotal int64      `json:"minSubtotal"`
	MaxDiscount int64      `json:"maxDiscount"`
	Active      bool       `json:"active"`
	StartsAt    *time.Time `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
}

type voucherView struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Kind        string     `json:"kind"`
	Value       int64      `json:"value"`
	MinSubtotal int64      `json:"minSubtotal"`
	MaxDiscount int64      `json:"maxDiscount"`
	Active      bool       `json:"active"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
}

// List returns vouchers for the admin panel, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher queries not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50)
	rows, err := h.Q.ListVouchers(r.Context(), int32(perPage), int32(common.Offset(page, perPage)))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list vouchers", nil)
		return
	}
	out := make([]voucherView, 0, len(rows))
	for _, v := range rows {
		out = append(out, toView(v))
	}
	common.JSONData(w, http.StatusOK, out)
}

// Create inserts a new voucher.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher queries not configured", nil)
		return
	}
	var payload voucherPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.BadRequest("invalid payload", nil))
		return
	}
	params, err := buildParams(payload)
	if err != nil {
		common.WriteError(w, common.BadRequest(err.Error(), nil))
		return
	}
	id, err := h.Q.CreateVoucher(r.Context(), params)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.WriteError(w, common.Conflict("CONFLICT", "voucher code already exists"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create voucher", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]any{"id": store.UUIDString(id), "code": params.Code})
}

// SetActive toggles a voucher on or off.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher queries not configured", nil)
		return
	}
	id, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, common.BadRequest("invalid voucher id", nil))
		return
	}
	var payload struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.BadRequest("invalid payload", nil))
		return
	}
	if err := h.Q.SetVoucherActive(r.Context(), id, payload.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.NotFound("voucher not found"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update voucher", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{"active": payload.Active})
}

// Preview evaluates a voucher against a hypothetical subtotal without touching any cart.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher queries not configured", nil)
		return
	}
	var req struct {
		Code     string `json:"code"`
		Subtotal int64  `json:"subtotal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, common.BadRequest("invalid payload", nil))
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		common.WriteError(w, common.BadRequest("code is required", nil))
		return
	}
	row, err := h.Q.GetVoucherByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.WriteError(w, common.NotFound("voucher not found"))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load voucher", nil)
		return
	}
	discount, err := Evaluate(row, req.Subtotal, h.now())
	if err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"code":     row.Code,
		"subtotal": req.Subtotal,
		"discount": discount,
	})
}

func (h *Handler) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func buildParams(payload voucherPayload) (store.UpsertVoucherParams, error) {
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	if code == "" {
		return store.UpsertVoucherParams{}, errors.New("code is required")
	}
	kind := strings.ToLower(strings.TrimSpace(payload.Kind))
	switch kind {
	case KindAmount, KindPercent:
	default:
		return store.UpsertVoucherParams{}, errors.New("kind must be amount or percent")
	}
	if payload.Value <= 0 {
		return store.UpsertVoucherParams{}, errors.New("value must be positive")
	}
	if kind == KindPercent && payload.Value > 10000 {
		return store.UpsertVoucherParams{}, errors.New("percent value exceeds 100%")
	}
	if payload.MinSubtotal < 0 || payload.MaxDiscount < 0 {
		return store.UpsertVoucherParams{}, errors.New("thresholds must not be negative")
	}
	if payload.StartsAt != nil && payload.EndsAt != nil && payload.EndsAt.Before(*payload.StartsAt) {
		return store.UpsertVoucherParams{}, errors.New("endsAt must not precede startsAt")
	}
	return store.UpsertVoucherParams{
		Code:        code,
		Kind:        kind,
		Value:       payload.Value,
		MinSubtotal: payload.MinSubtotal,
		MaxDiscount: payload.MaxDiscount,
		Active:      payload.Active,
		StartsAt:    payload.StartsAt,
		EndsAt:      payload.EndsAt,
	}, nil
}

func toView(v store.Voucher) voucherView {
	out := voucherView{
		ID:          store.UUIDString(v.ID),
		Code:        v.Code,
		Kind:        v.Kind,
		Value:       v.Value,
		MinSubtotal: v.MinSubtotal,
		MaxDiscount: v.MaxDiscount,
		Active:      v.Active,
	}
	if v.StartsAt.Valid {
		t := v.StartsAt.Time
		out.StartsAt = &t
	}
	if v.EndsAt.Valid {
		t := v.EndsAt.Time
		out.EndsAt = &t
	}
	return out
}
