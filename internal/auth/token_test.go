// internal/auth/token_test.go
package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyJWTReturnsSubject(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "a@x",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	email, err := v.VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "a@x", email)
}

func TestVerifyJWTRejectsWrongSecret(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	token := signToken(t, "other-secret", jwt.MapClaims{"sub": "a@x"})
	_, err = v.VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyJWTRejectsExpired(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "a@x",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err = v.VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyJWTRejectsMissingSubject(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	token := signToken(t, testSecret, jwt.MapClaims{"foo": "bar"})
	_, err = v.VerifyJWT(token)
	assert.Error(t, err)
}

func TestVerifyJWTRejectsGarbage(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	_, err = v.VerifyJWT("not-a-token")
	assert.Error(t, err)
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("")
	assert.Error(t, err)
}
