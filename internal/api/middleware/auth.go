package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/loreworks/mwassist/internal/api"
	"github.com/loreworks/mwassist/internal/domain"
)

type contextKey string

const IdentityKey contextKey = "identity"

// IdentityValidator turns a bearer token into a verified caller identity.
// Token signing and verification live outside the core; this boundary only
// consumes the claims.
type IdentityValidator interface {
	ValidateToken(ctx context.Context, token string) (*domain.Identity, error)
}

func BearerAuth(validator IdentityValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			identity, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if err := domain.ValidateIdentity(identity); err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the verified identity, or nil outside authed routes.
func GetIdentity(ctx context.Context) *domain.Identity {
	identity, _ := ctx.Value(IdentityKey).(*domain.Identity)
	return identity
}

// RequireScope rejects requests whose identity lacks the given scope.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity == nil || !identity.HasScope(scope) {
				api.Error(w, http.StatusForbidden, "required scope not granted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
