// Package auth verifies the HMAC-signed identity tokens minted by the wiki
// extension. Tokens carry the caller's claims; signing happens on the wiki
// side with the shared secret, so the backend only ever verifies.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/loreworks/mwassist/internal/domain"
)

// tokenClaims is the signed payload: identity plus an expiry.
type tokenClaims struct {
	WikiID     string   `json:"wiki_id"`
	UserID     int64    `json:"user_id"`
	Username   string   `json:"username"`
	Namespaces []int    `json:"namespaces"`
	Scopes     []string `json:"scopes"`
	ExpiresAt  int64    `json:"exp"`
}

// HMACValidator verifies tokens of the form
// base64url(claims).base64url(hmac-sha256(claims)).
type HMACValidator struct {
	secret []byte
	now    func() time.Time
}

func NewHMACValidator(secret string) *HMACValidator {
	return &HMACValidator{secret: []byte(secret), now: time.Now}
}

// ValidateToken checks the signature and expiry and returns the claims as a
// domain identity. All failures map to UNAUTHORIZED; the caller never learns
// which part of the token was bad.
func (v *HMACValidator) ValidateToken(ctx context.Context, token string) (*domain.Identity, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		return nil, domain.NewDomainError(domain.ErrCodeUnauthorized, "malformed token")
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeUnauthorized, "malformed token")
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeUnauthorized, "malformed token")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payloadBytes)
	if !hmac.Equal(sigBytes, mac.Sum(nil)) {
		return nil, domain.NewDomainError(domain.ErrCodeUnauthorized, "invalid token signature")
	}

	var claims tokenClaims
	if err := json.Unmarshal(payloadBytes, &claims); err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeUnauthorized, "malformed token claims")
	}
	if claims.ExpiresAt > 0 && v.now().Unix() > claims.ExpiresAt {
		return nil, domain.NewDomainError(domain.ErrCodeUnauthorized, "token expired")
	}

	return &domain.Identity{
		TenantID:          claims.WikiID,
		UserID:            claims.UserID,
		Username:          claims.Username,
		AllowedNamespaces: claims.Namespaces,
		Scopes:            claims.Scopes,
	}, nil
}

// SignToken mints a token for the given identity. Production signing lives in
// the wiki extension; this exists for tests and local tooling.
func SignToken(secret string, identity *domain.Identity, expiresAt time.Time) (string, error) {
	claims := tokenClaims{
		WikiID:     identity.TenantID,
		UserID:     identity.UserID,
		Username:   identity.Username,
		Namespaces: identity.AllowedNamespaces,
		Scopes:     identity.Scopes,
	}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = expiresAt.Unix()
	}

	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payloadBytes)

	return base64.RawURLEncoding.EncodeToString(payloadBytes) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}
