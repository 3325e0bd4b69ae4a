package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

var errNoToken = errors.New("auth: token missing")

type accountChecker interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (store.User, error)
}

// Middleware attaches verified identity to request contexts and gates
// protected routes. When Accounts is configured, blocked users are rejected
// and the role is read fresh from the database instead of the token.
type Middleware struct {
	Verifier Verifier
	Accounts accountChecker
}

// Authenticate attaches identity when a valid token is present. Requests
// without a token pass through anonymously; guest carts depend on that.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests without a valid token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticate(r)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.WriteError(w, appErr)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated callers whose role is not in the allow
// list. It must be mounted behind RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := common.Role(r.Context())
			if !ok || !allowed[role] {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient privileges", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) authenticate(r *http.Request) (context.Context, error) {
	token := extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	claims, err := m.Verifier.Parse(token)
	if err != nil {
		return r.Context(), err
	}
	role := claims.Role
	if m.Accounts != nil {
		id, err := store.UUIDValue(claims.UserID)
		if err != nil {
			return r.Context(), err
		}
		user, err := m.Accounts.GetUserByID(r.Context(), id)
		if err != nil {
			return r.Context(), err
		}
		if user.Blocked {
			return r.Context(), common.NewAppError("BLOCKED", "account is blocked", http.StatusForbidden, nil)
		}
		role = user.Role
	}
	ctx := common.WithUserID(r.Context(), claims.UserID)
	if role != "" {
		ctx = common.WithRole(ctx, role)
	}
	return ctx, nil
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
