package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/tienda-labs/backend-tienda/internal/common"
	"github.com/tienda-labs/backend-tienda/internal/store"
)

const testSecret = "super-secret-key"

func signToken(t *testing.T, subject, role string, expires time.Time) string {
	t.Helper()
	builder := jwt.NewBuilder().
		Issuer("tienda").
		Audience([]string{"tienda-frontend"}).
		Subject(subject).
		IssuedAt(time.Now()).
		Expiration(expires)
	if role != "" {
		builder = builder.Claim("role", role)
	}
	tok, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func testVerifier() Verifier {
	return Verifier{
		Secret:   []byte(testSecret),
		Issuer:   "tienda",
		Audience: "tienda-frontend",
	}
}

type fakeAccounts struct {
	users map[[16]byte]store.User
}

func (f *fakeAccounts) GetUserByID(_ context.Context, id pgtype.UUID) (store.User, error) {
	u, ok := f.users[id.Bytes]
	if !ok {
		return store.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func echoIdentity() (http.Handler, *string, *string) {
	var gotUser, gotRole string
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = common.UserID(r.Context())
		gotRole, _ = common.Role(r.Context())
		w.WriteHeader(http.StatusOK)
	}), &gotUser, &gotRole
}

func TestRequireAuthAttachesClaims(t *testing.T) {
	m := Middleware{Verifier: testVerifier()}
	next, gotUser, gotRole := echoIdentity()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "customer", time.Now().Add(time.Minute)))
	rec := httptest.NewRecorder()
	m.RequireAuth(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", *gotUser)
	require.Equal(t, "customer", *gotRole)
}

func TestRequireAuthRejectsExpiredToken(t *testing.T) {
	m := Middleware{Verifier: testVerifier()}
	next, _, _ := echoIdentity()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "user-1", "", time.Now().Add(-time.Minute)))
	rec := httptest.NewRecorder()
	m.RequireAuth(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthRejectsBlockedAccount(t *testing.T) {
	var id pgtype.UUID
	id.Bytes[15] = 1
	id.Valid = true
	accounts := &fakeAccounts{users: map[[16]byte]store.User{
		id.Bytes: {ID: id, Role: "customer", Blocked: true},
	}}
	m := Middleware{Verifier: testVerifier(), Accounts: accounts}
	next, _, _ := echoIdentity()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, store.UUIDString(id), "customer", time.Now().Add(time.Minute)))
	rec := httptest.NewRecorder()
	m.RequireAuth(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthenticatePassesAnonymously(t *testing.T) {
	m := Middleware{Verifier: testVerifier()}
	next, gotUser, _ := echoIdentity()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	m.Authenticate(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, *gotUser)
}

func TestRequireRole(t *testing.T) {
	next, _, _ := echoIdentity()
	guard := RequireRole("admin", "staff")(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(common.WithRole(common.WithUserID(req.Context(), "u"), "customer"))
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(common.WithRole(common.WithUserID(req.Context(), "u"), "staff"))
	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
