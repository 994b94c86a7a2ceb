// internal/middleware/auth.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/SKHU-BUZZLE/buzzle-engine/internal/auth"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity returns the authenticated email stored by Auth, or "".
func Identity(ctx context.Context) string {
	email, _ := ctx.Value(identityKey).(string)
	return email
}

// WithIdentity returns a context carrying the email, for tests and the
// websocket path which authenticates before the handler chain.
func WithIdentity(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, identityKey, email)
}

// Auth rejects requests without a valid bearer token and stores the verified
// email on the request context. The token may arrive in the Authorization
// header or, for websocket upgrades from browsers, the "token" query param.
func Auth(verifier *auth.Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			email, err := verifier.VerifyJWT(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), email)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
