package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeNotFound,
				Message: "account not found",
				Err:     errors.New("404 from provider"),
			},
			wantMsg: "not_found: account not found (404 from provider)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: ErrAccountNotFound,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrAccountNotFound,
			want:   false,
		},
		{
			name:   "wrapped with fmt",
			err:    fmt.Errorf("handler: %w", ErrInvalidToken),
			target: ErrMissingToken,
			want:   true,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			target: ErrRoleStoreFailed,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeCompensationFailed, "orphan", nil).WithDetail("identity_id", "u1")
	assert.Equal(t, "u1", err.Details["identity_id"])

	var bare DomainError
	bare.WithDetail("k", 1)
	assert.Equal(t, 1, bare.Details["k"])
}

func TestErrorTypeCheckers(t *testing.T) {
	checkers := map[ErrorType]func(error) bool{
		ErrorTypeNotFound:           IsNotFoundError,
		ErrorTypeValidation:         IsValidationError,
		ErrorTypeUnauthorized:       IsUnauthorizedError,
		ErrorTypeForbidden:          IsForbiddenError,
		ErrorTypeConflict:           IsConflictError,
		ErrorTypeInternal:           IsInternalError,
		ErrorTypeExternal:           IsExternalError,
		ErrorTypeCompensationFailed: IsCompensationFailedError,
	}

	for errType, check := range checkers {
		t.Run(string(errType), func(t *testing.T) {
			err := fmt.Errorf("context: %w", NewDomainError(errType, "msg", nil))
			assert.True(t, check(err))
			assert.False(t, check(errors.New("plain")))
			assert.False(t, check(nil))

			for other, otherCheck := range checkers {
				if other != errType {
					assert.False(t, otherCheck(err), "%s matched %s", errType, other)
				}
			}
		})
	}
}

func TestGetErrorMessage(t *testing.T) {
	wrapped := WrapExternal("Identity provider request failed", errors.New("dial tcp: refused"))
	assert.Equal(t, "Identity provider request failed", GetErrorMessage(wrapped))
	assert.Equal(t, "", GetErrorMessage(errors.New("plain")))
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "bad", nil).WithDetail("field", "email")
	assert.Equal(t, map[string]interface{}{"field": "email"}, GetErrorDetails(err))
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}

func TestWrapHelpers(t *testing.T) {
	base := errors.New("base")

	internal := WrapInternal("db down", base)
	assert.True(t, IsInternalError(internal))
	assert.ErrorIs(t, internal, base)

	external := WrapExternal("provider down", base)
	assert.True(t, IsExternalError(external))

	generic := WrapError(ErrorTypeConflict, "dup", base)
	assert.True(t, IsConflictError(generic))
}

func TestErrorVariables(t *testing.T) {
	vars := []*DomainError{
		ErrAccountNotFound, ErrInvalidInput, ErrMissingFields, ErrWeakPassword, ErrInvalidSubRole,
		ErrInvalidID, ErrMissingToken, ErrInvalidToken, ErrInsufficientPermissions, ErrDuplicateEmail,
		ErrRoleLookupFailed, ErrRoleStoreFailed, ErrIdentityProvider, ErrCompensationFailed,
	}
	for _, v := range vars {
		require.NotNil(t, v)
		assert.NotEmpty(t, v.Type)
		assert.NotEmpty(t, v.Message)
	}
}
