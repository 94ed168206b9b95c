package domain

import (
	"regexp"
	"strings"
)

// tenantIDPattern restricts tenant ids to a filesystem- and SQL-safe charset.
var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateTenantID validates a tenant (wiki) identifier. Tenant ids are used
// to derive storage locations, so this is a security boundary against path
// injection.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return ErrInvalidTenantID
	}
	if !tenantIDPattern.MatchString(tenantID) {
		return ErrInvalidTenantID
	}
	if strings.Contains(tenantID, "..") ||
		strings.ContainsAny(tenantID, `/\`) {
		return ErrInvalidTenantID
	}
	return nil
}

// Identity is the already-verified caller identity attached to every request.
// Token verification happens upstream; the core only consumes the claims.
type Identity struct {
	TenantID          string
	UserID            int64
	Username          string
	AllowedNamespaces []int
	Scopes            []string
}

// NewIdentity creates a new Identity instance
func NewIdentity(tenantID string, userID int64, username string, allowedNamespaces []int, scopes []string) *Identity {
	return &Identity{
		TenantID:          tenantID,
		UserID:            userID,
		Username:          username,
		AllowedNamespaces: allowedNamespaces,
		Scopes:            scopes,
	}
}

// HasScope returns true if the identity carries the given scope.
func (i *Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// CanReadNamespace returns true if the namespace is in the identity's
// allow-list. An empty allow-list denies everything (fail closed).
func (i *Identity) CanReadNamespace(namespace int) bool {
	for _, ns := range i.AllowedNamespaces {
		if ns == namespace {
			return true
		}
	}
	return false
}

// ValidateIdentity validates an Identity instance
func ValidateIdentity(i *Identity) error {
	if i == nil {
		return NewDomainError(ErrCodeValidation, "identity cannot be nil")
	}
	if err := ValidateTenantID(i.TenantID); err != nil {
		return err
	}
	if i.UserID <= 0 {
		return NewDomainError(ErrCodeValidation, "identity UserID is required")
	}
	if i.Username == "" {
		return NewDomainError(ErrCodeValidation, "identity Username is required")
	}
	return nil
}

// Scopes understood by the route layer.
const (
	ScopeChatCompletion = "chat_completion"
	ScopeSearch         = "search"
	ScopeEmbeddings     = "embeddings"
	ScopeAdmin          = "admin"
)
