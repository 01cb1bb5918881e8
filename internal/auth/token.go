package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when the bearer token is not a decodable
	// three-segment JWT carrying a subject claim.
	ErrMalformedToken = errors.New("malformed session token")

	// ErrTokenExpired is returned when the token's expiry claim is in the past.
	ErrTokenExpired = errors.New("session token expired")
)

// Identity is the read-only routing information a validated token yields.
// It is never proof of fresh authentication: sensitive operations re-prove
// the password instead of trusting it (see ChangePassword).
type Identity struct {
	ID    string
	Email string
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// DecodeClaimsUnverified extracts subject and email from a session token
// WITHOUT checking its signature. This is sound only because the token was
// signed by the identity provider, whose private key this service never
// holds, and only as the fallback when the provider cannot be asked directly.
// Anything needing verified claims must go through Client.Introspect.
func DecodeClaimsUnverified(raw string, now time.Time) (*Identity, error) {
	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, ErrMalformedToken
	}
	if claims.Subject == "" {
		return nil, ErrMalformedToken
	}
	// Whole-second comparison, matching the provider's exp resolution.
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(now.Truncate(time.Second)) {
		return nil, ErrTokenExpired
	}
	return &Identity{ID: claims.Subject, Email: claims.Email}, nil
}
