package cart

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

// TokenHeader carries the guest cart token. The server mints one on the
// first guest interaction and echoes it back on every cart response.
const TokenHeader = "X-Cart-Token"

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc *Service
}

// Get returns the caller's cart, creating it when absent.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.resolve(w, r)
	if !ok {
		return
	}
	h.respondView(w, r, cart)
}

// AddItem sets the quantity for a line and returns the updated cart.
// The optional selector names the chosen color or variant.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID string `json:"productId"`
		Selector  string `json:"selector"`
		Qty       int    `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.BadRequest("invalid payload", nil))
		return
	}
	if strings.TrimSpace(payload.ProductID) == "" {
		common.WriteError(w, common.BadRequest("productId is required", nil))
		return
	}
	if err := h.Svc.AddItem(r.Context(), cart, payload.ProductID, payload.Selector, payload.Qty); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondView(w, r, cart)
}

// UpdateItem changes the quantity for a cart line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.resolve(w, r)
	if !ok {
		return
	}
	productID := chi.URLParam(r, "productId")
	var payload struct {
		Selector string `json:"selector"`
		Qty      int    `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.BadRequest("invalid payload", nil))
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), cart, productID, payload.Selector, payload.Qty); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondView(w, r, cart)
}

// RemoveItem deletes a cart line. The selector, when the line has one,
// is passed as a query parameter.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveItem(r.Context(), cart, chi.URLParam(r, "productId"), r.URL.Query().Get("selector")); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondView(w, r, cart)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Clear(r.Context(), cart); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondView(w, r, cart)
}

// ApplyVoucher attaches a voucher code to the cart.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.resolve(w, r)
	if !ok {
		return
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.BadRequest("invalid payload", nil))
		return
	}
	if _, err := h.Svc.ApplyVoucher(r.Context(), cart, payload.Code); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondView(w, r, cart)
}

// RemoveVoucher detaches the applied voucher.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	cart, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveVoucher(r.Context(), cart); err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondView(w, r, cart)
}

// Merge folds the guest cart named by the token into the authenticated
// user's cart. Requires authentication.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteError(w, common.BadRequest("invalid payload", nil))
		return
	}
	token := payload.Token
	if token == "" {
		token = r.Header.Get(TokenHeader)
	}
	merged, err := h.Svc.Merge(r.Context(), token, userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.respondView(w, r, merged)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (cart store.Cart, ok bool) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return cart, false
	}
	id := Identity{Token: strings.TrimSpace(r.Header.Get(TokenHeader))}
	if uid, found := common.UserID(r.Context()); found {
		id.UserID = uid
	}
	resolved, err := h.Svc.Ensure(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return cart, false
	}
	return resolved, true
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, cart store.Cart) {
	// Reload so voucher and TTL changes from this request are reflected.
	fresh, err := h.Svc.Ensure(r.Context(), identityOf(cart))
	if err == nil {
		cart = fresh
	}
	view, err := h.Svc.View(r.Context(), cart)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load cart", nil)
		return
	}
	if view.Token != "" {
		w.Header().Set(TokenHeader, view.Token)
	}
	common.JSONData(w, http.StatusOK, view)
}

func identityOf(cart store.Cart) Identity {
	var id Identity
	if cart.UserID.Valid {
		id.UserID = store.UUIDString(cart.UserID)
	}
	if cart.Token.Valid {
		id.Token = cart.Token.String
	}
	return id
}
