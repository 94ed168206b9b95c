package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loreworks/mwassist/internal/domain"
)

type staticValidator struct {
	identity *domain.Identity
	err      error
}

func (v *staticValidator) ValidateToken(ctx context.Context, token string) (*domain.Identity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}

func validIdentity() *domain.Identity {
	return &domain.Identity{
		TenantID:          "wiki_a",
		UserID:            7,
		Username:          "alice",
		AllowedNamespaces: []int{0},
		Scopes:            []string{domain.ScopeSearch},
	}
}

func TestBearerAuth(t *testing.T) {
	var captured *domain.Identity
	handler := BearerAuth(&staticValidator{identity: validIdentity()})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = GetIdentity(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, captured)
	assert.Equal(t, "wiki_a", captured.TenantID)
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	handler := BearerAuth(&staticValidator{identity: validIdentity()})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be reached")
		}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuth_WrongScheme(t *testing.T) {
	handler := BearerAuth(&staticValidator{identity: validIdentity()})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be reached")
		}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuth_ValidatorRejects(t *testing.T) {
	handler := BearerAuth(&staticValidator{err: domain.ErrInvalidToken})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be reached")
		}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerAuth_BadClaims(t *testing.T) {
	handler := BearerAuth(&staticValidator{identity: &domain.Identity{TenantID: "../etc", UserID: 7, Username: "x"}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be reached")
		}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireScope(t *testing.T) {
	handler := RequireScope(domain.ScopeSearch)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	ctx := context.WithValue(req.Context(), IdentityKey, validIdentity())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req.WithContext(ctx))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireScope_MissingScope(t *testing.T) {
	handler := RequireScope(domain.ScopeAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be reached")
		}))

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	ctx := context.WithValue(req.Context(), IdentityKey, validIdentity())
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, http.StatusForbidden, w.Code)
}
