package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mygain/portal-gateway/services"
	"github.com/mygain/portal-gateway/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedError   string
		expectedMessage string
	}{
		{
			name:            "not found error",
			err:             services.ErrAccountNotFound,
			expectedStatus:  http.StatusNotFound,
			expectedError:   "not_found",
			expectedMessage: "Account not found",
		},
		{
			name:            "validation error",
			err:             services.ErrMissingFields,
			expectedStatus:  http.StatusBadRequest,
			expectedError:   "bad_request",
			expectedMessage: "Missing required fields",
		},
		{
			name:            "unauthorized error",
			err:             services.ErrInvalidToken,
			expectedStatus:  http.StatusUnauthorized,
			expectedError:   "unauthorized",
			expectedMessage: "Invalid token",
		},
		{
			name:            "forbidden error",
			err:             services.ErrInsufficientPermissions,
			expectedStatus:  http.StatusForbidden,
			expectedError:   "forbidden",
			expectedMessage: "Insufficient permissions",
		},
		{
			name:            "conflict error",
			err:             services.ErrDuplicateEmail,
			expectedStatus:  http.StatusConflict,
			expectedError:   "conflict",
			expectedMessage: "Email already registered",
		},
		{
			name:            "external error hides provider message",
			err:             services.WrapExternal("gotrue said: secret detail", errors.New("boom")),
			expectedStatus:  http.StatusBadGateway,
			expectedError:   "bad_gateway",
			expectedMessage: "Identity provider request failed",
		},
		{
			name:            "compensation failure",
			err:             services.NewDomainError(services.ErrorTypeCompensationFailed, services.ErrCompensationFailed.Message, errors.New("delete failed")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "compensation_failed",
			expectedMessage: "Account created without role and could not be removed",
		},
		{
			name:            "internal error keeps domain message only",
			err:             services.WrapInternal("Failed to load roles", errors.New("pq: connection refused")),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "Failed to load roles",
		},
		{
			name:            "plain error",
			err:             errors.New("some low level failure"),
			expectedStatus:  http.StatusInternalServerError,
			expectedError:   "internal_error",
			expectedMessage: "An internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
			assert.Equal(t, tt.expectedMessage, response.Message)
			assert.NotContains(t, response.Message, "pq:")
		})
	}
}

func TestHandleServiceError_Details(t *testing.T) {
	err := services.NewDomainError(services.ErrorTypeValidation, "Invalid email", nil).
		WithDetail("email", "must be a valid email")

	w := httptest.NewRecorder()
	HandleServiceError(w, err, zap.NewNop())

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "must be a valid email", response.Details["email"])
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, 0, w.Body.Len())
}

func TestHandleDecodeError(t *testing.T) {
	w := httptest.NewRecorder()
	HandleDecodeError(w, errors.New("unexpected EOF"), zap.NewNop())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Invalid request body", response.Message)
}
