package handlers

import (
	"net/http"

	"github.com/mygain/portal-gateway/services"
	"github.com/mygain/portal-gateway/utils"
	"go.uber.org/zap"
)

const (
	internalErrorMessage = "An internal error occurred"
	upstreamErrorMessage = "Identity provider request failed"
)

// HandleServiceError maps domain errors to HTTP responses. Only the domain
// message reaches the client; wrapped causes are logged.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	message := services.GetErrorMessage(err)
	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, message)

	case services.IsConflictError(err):
		writeErr = utils.WriteConflict(w, message, details)

	case services.IsExternalError(err):
		logger.Error("identity provider error", zap.Error(err))
		writeErr = utils.WriteBadGateway(w, upstreamErrorMessage)

	case services.IsCompensationFailedError(err):
		logger.Error("account left without role", zap.Error(err), zap.Any("details", details))
		writeErr = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse{
			Error:   string(services.ErrorTypeCompensationFailed),
			Message: message,
			Details: details,
		})

	case services.IsInternalError(err):
		logger.Error("internal error", zap.Error(err))
		if message == "" {
			message = internalErrorMessage
		}
		writeErr = utils.WriteInternalServerError(w, message)

	default:
		logger.Error("unhandled error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, internalErrorMessage)
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleDecodeError reports a request body that could not be parsed
func HandleDecodeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	logger.Debug("invalid request body", zap.Error(err))
	if writeErr := utils.WriteBadRequest(w, "Invalid request body", nil); writeErr != nil {
		logger.Error("failed to write bad request response", zap.Error(writeErr))
	}
}
