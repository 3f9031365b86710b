package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Introspect when the token is not a JWT. Opaque
// tokens are valid; callers fall back to the backend-provided expiry.
var ErrNotJWT = errors.New("session token is not a JWT")

// TokenClaims holds the claims the agent reads out of a JWT session token.
type TokenClaims struct {
	Subject   string
	ExpiresAt jwt.NumericDate
}

// Introspect parses a JWT session token WITHOUT verifying its signature and
// returns its subject and expiry. The backend is the verification authority;
// the agent only needs the expiry to schedule proactive refresh when the
// validate/refresh responses omit one.
func Introspect(token string) (*TokenClaims, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotJWT, err)
	}

	out := &TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = *exp
	}
	return out, nil
}
