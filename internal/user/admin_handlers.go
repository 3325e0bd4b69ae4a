package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

// Roles assignable through the admin API.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

type adminQueries interface {
	ListUsers(ctx context.Context, limit, offset int32) ([]store.User, error)
	CountUsers(ctx context.Context) (int64, error)
	CreateUser(ctx context.Context, email, passwordHash, name, role string) (pgtype.UUID, error)
	SetUserRole(ctx context.Context, id pgtype.UUID, role string) error
	SetUserBlocked(ctx context.Context, id pgtype.UUID, blocked bool) error
}

// AdminHandler serves staff-only user management endpoints.
type AdminHandler struct {
	Q adminQueries
}

type userView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	Blocked   bool       `json:"blocked"`
	CreatedAt *time.Time `json:"createdAt"`
}

func toUserView(u store.User) userView {
	v := userView{
		ID:      store.UUIDString(u.ID),
		Email:   u.Email,
		Name:    u.Name,
		Role:    u.Role,
		Blocked: u.Blocked,
	}
	if u.CreatedAt.Valid {
		t := u.CreatedAt.Time
		v.CreatedAt = &t
	}
	return v
}

// List returns users, newest first.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 50)
	rows, err := h.Q.ListUsers(r.Context(), int32(perPage), int32(common.Offset(page, perPage)))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list users", nil)
		return
	}
	total, err := h.Q.CountUsers(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count users", nil)
		return
	}
	views := make([]userView, 0, len(rows))
	for _, u := range rows {
		views = append(views, toUserView(u))
	}
	common.JSONList(w, http.StatusOK, views, common.NewPagination(page, perPage, int(total)))
}

type createStaffPayload struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateStaff registers a staff or admin account with an argon2id password
// hash.
func (h *AdminHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "a valid email is required", nil)
		return
	}
	if len(req.Password) < 10 {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "password must be at least 10 characters", nil)
		return
	}
	role := req.Role
	if role == "" {
		role = RoleStaff
	}
	if role != RoleStaff && role != RoleAdmin {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "role must be staff or admin", nil)
		return
	}
	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to hash password", nil)
		return
	}
	id, err := h.Q.CreateUser(r.Context(), req.Email, hash, strings.TrimSpace(req.Name), role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "ALREADY_EXISTS", "email already registered", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create user", nil)
		return
	}
	common.JSONData(w, http.StatusCreated, map[string]string{"id": store.UUIDString(id)})
}

type rolePayload struct {
	Role string `json:"role"`
}

// SetRole grants or revokes staff privileges.
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var req rolePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if req.Role != RoleCustomer && req.Role != RoleStaff && req.Role != RoleAdmin {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "unknown role", nil)
		return
	}
	if callerID, _ := common.UserID(r.Context()); callerID == store.UUIDString(id) {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "cannot change your own role", nil)
		return
	}
	if err := h.Q.SetUserRole(r.Context(), id, req.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update role", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type blockPayload struct {
	Blocked bool `json:"blocked"`
}

// SetBlocked blocks or unblocks a user account.
func (h *AdminHandler) SetBlocked(w http.ResponseWriter, r *http.Request) {
	id, err := store.UUIDValue(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var req blockPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if callerID, _ := common.UserID(r.Context()); callerID == store.UUIDString(id) {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "cannot block yourself", nil)
		return
	}
	if err := h.Q.SetUserBlocked(r.Context(), id, req.Blocked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update user", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
