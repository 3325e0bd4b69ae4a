package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims is the identity carried by a verified access token.
type Claims struct {
	UserID string
	Role   string
}

// Verifier checks HS256 access tokens minted by the identity service.
// Token issuance lives elsewhere; this service only consumes them.
type Verifier struct {
	Secret    []byte
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

// Parse verifies the signature and the registered claims, then extracts the
// subject and role.
func (v Verifier) Parse(raw string) (Claims, error) {
	if len(v.Secret) == 0 {
		return Claims{}, errors.New("auth: verifier secret not configured")
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	options := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(now)),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	tok, err := jwt.Parse([]byte(raw), options...)
	if err != nil {
		return Claims{}, fmt.Errorf("auth: parse token: %w", err)
	}
	claims := Claims{UserID: tok.Subject()}
	if claims.UserID == "" {
		return Claims{}, errors.New("auth: token missing subject")
	}
	if role, ok := tok.Get("role"); ok {
		if s, ok := role.(string); ok {
			claims.Role = s
		}
	}
	return claims, nil
}
