package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeUnauthorized       ErrorType = "unauthorized"
	ErrorTypeForbidden          ErrorType = "forbidden"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeInternal           ErrorType = "internal"
	ErrorTypeExternal           ErrorType = "external"
	ErrorTypeCompensationFailed ErrorType = "compensation_failed"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables. These are shared values: build a fresh error with
// NewDomainError before attaching details.

var (
	ErrAccountNotFound = NewDomainError(ErrorTypeNotFound, "Account not found", nil)

	ErrInvalidInput   = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrMissingFields  = NewDomainError(ErrorTypeValidation, "Missing required fields", nil)
	ErrWeakPassword   = NewDomainError(ErrorTypeValidation, "Password must be at least 8 characters", nil)
	ErrInvalidSubRole = NewDomainError(ErrorTypeValidation, "Invalid sub-role", nil)
	ErrInvalidID      = NewDomainError(ErrorTypeValidation, "Invalid account id", nil)

	ErrMissingToken = NewDomainError(ErrorTypeUnauthorized, "Missing bearer token", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "Invalid token", nil)

	ErrInsufficientPermissions = NewDomainError(ErrorTypeForbidden, "Insufficient permissions", nil)

	ErrDuplicateEmail = NewDomainError(ErrorTypeConflict, "Email already registered", nil)

	ErrRoleLookupFailed = NewDomainError(ErrorTypeInternal, "Failed to load roles", nil)
	ErrRoleStoreFailed  = NewDomainError(ErrorTypeInternal, "Failed to save role", nil)

	ErrIdentityProvider = NewDomainError(ErrorTypeExternal, "Identity provider request failed", nil)

	ErrCompensationFailed = NewDomainError(ErrorTypeCompensationFailed, "Account created without role and could not be removed", nil)
)

// Error type checking helper functions

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return hasType(err, ErrorTypeUnauthorized)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return hasType(err, ErrorTypeForbidden)
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return hasType(err, ErrorTypeConflict)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

// IsExternalError checks if an error came from the identity provider or another upstream
func IsExternalError(err error) bool {
	return hasType(err, ErrorTypeExternal)
}

// IsCompensationFailedError reports a create whose rollback also failed
func IsCompensationFailedError(err error) bool {
	return hasType(err, ErrorTypeCompensationFailed)
}

// GetErrorMessage returns the client-facing message of a domain error
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as an upstream error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}
