package shipping

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

// Handler exposes shipment lookup, admin registration and rate quoting.
type Handler struct {
	Svc *Service
}

type shipmentView struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"orderId"`
	Courier        string     `json:"courier"`
	TrackingNumber string     `json:"trackingNumber"`
	Status         string     `json:"status"`
	UpdatedAt      *time.Time `json:"updatedAt"`
}

func toShipmentView(sh store.Shipment) shipmentView {
	v := shipmentView{
		ID:             store.UUIDString(sh.ID),
		OrderID:        store.UUIDString(sh.OrderID),
		Courier:        sh.Courier,
		TrackingNumber: sh.TrackingNumber,
		Status:         sh.Status,
	}
	if sh.UpdatedAt.Valid {
		t := sh.UpdatedAt.Time
		v.UpdatedAt = &t
	}
	return v
}

// GetByOrder returns the shipment attached to one of the caller's orders.
// Orders owned by other users read as missing.
func (h *Handler) GetByOrder(w http.ResponseWriter, r *http.Request) {
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
	oID, err := store.UUIDValue(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Svc.Q.GetOrder(r.Context(), oID)
	if err != nil || ord.UserID != uID {
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
			return
		}
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	shipment, err := h.Svc.Q.GetShipmentByOrder(r.Context(), ord.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "shipment not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load shipment", nil)
		return
	}
	common.JSONData(w, http.StatusOK, toShipmentView(shipment))
}

type createShipmentRequest struct {
	Courier        string `json:"courier"`
	TrackingNumber string `json:"trackingNumber"`
}

// AdminCreate registers courier and tracking data for a paid order.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	oID, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req createShipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if req.Courier == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "courier is required", nil)
		return
	}
	shipment, err := h.Svc.Create(r.Context(), oID, req.Courier, req.TrackingNumber)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotEligible):
			common.JSONError(w, http.StatusConflict, "INVALID_STATE", err.Error(), nil)
		case errors.Is(err, pgx.ErrNoRows):
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		default:
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create shipment", nil)
		}
		return
	}
	common.JSONData(w, http.StatusCreated, toShipmentView(shipment))
}

// Rates quotes courier services for a destination and weight.
func (h *Handler) Rates(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Rates == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "rates client not configured", nil)
		return
	}
	var req RateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if req.Destination == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "destination is required", nil)
		return
	}
	rates, err := h.Svc.Rates.Rates(r.Context(), req)
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "failed to quote rates", nil)
		return
	}
	common.JSONData(w, http.StatusOK, rates)
}
