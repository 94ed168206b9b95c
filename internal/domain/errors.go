package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeTransport          = "TRANSPORT_ERROR"
	ErrCodeResponseValidation = "RESPONSE_VALIDATION_ERROR"
	ErrCodePermissionDenied   = "PERMISSION_DENIED"
	ErrCodeToolArgument       = "TOOL_ARGUMENT_ERROR"
	ErrCodeQuotaExceeded      = "QUOTA_EXCEEDED"
)

// Validation errors
var (
	ErrInvalidTenantID        = NewDomainError(ErrCodeValidation, "invalid tenant id")
	ErrInvalidNamespace       = NewDomainError(ErrCodeValidation, "invalid namespace")
	ErrEmptyEmbeddingBatch    = NewDomainError(ErrCodeValidation, "embedding batch cannot be empty")
	ErrEmbeddingCountMismatch = NewDomainError(ErrCodeValidation, "embedding count does not match record count")
	ErrInconsistentDimensions = NewDomainError(ErrCodeValidation, "inconsistent embedding dimensions")
)

// Not found errors
var (
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "chat session not found")
	ErrPageNotFound    = NewDomainError(ErrCodeNotFound, "wiki page not found")
)

// Authorization errors
var (
	ErrMissingScope = NewDomainError(ErrCodeForbidden, "required scope not granted")
	ErrInvalidToken = NewDomainError(ErrCodeUnauthorized, "invalid token")
	ErrAccessDenied = NewDomainError(ErrCodePermissionDenied, "access denied")
)

// Tool errors
var (
	ErrUnknownTool           = NewDomainError(ErrCodeToolArgument, "unknown tool")
	ErrMissingToolArgument   = NewDomainError(ErrCodeToolArgument, "missing required tool argument")
	ErrUnknownNamespaceAlias = NewDomainError(ErrCodeToolArgument, "unknown namespace alias")
)

// Persistence errors
var (
	ErrCorruptSnapshot = NewDomainError(ErrCodeInternalError, "vector store snapshot is corrupt")
)
