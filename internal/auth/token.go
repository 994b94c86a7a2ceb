// internal/auth/token.go
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks bearer tokens issued by the account service. The engine
// never issues tokens itself; it shares the account service's HMAC secret and
// trusts the "sub" claim as the caller's email identity.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier over the shared HMAC secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: JWT secret is not configured")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// VerifyJWT validates the token signature and expiry and returns the "sub"
// claim (the caller's email), or an error for anything invalid.
func (v *Verifier) VerifyJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid jwt claims")
	}
	email, ok := claims["sub"].(string)
	if !ok || email == "" {
		return "", errors.New("missing sub in jwt")
	}
	return email, nil
}
