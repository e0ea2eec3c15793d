package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mygain/portal-gateway/middleware"
	"github.com/mygain/portal-gateway/models"
	"github.com/mygain/portal-gateway/services/access"
	"github.com/mygain/portal-gateway/utils"
	"go.uber.org/zap"
)

// SessionResponse is the body of GET /session
type SessionResponse struct {
	Session *models.Session `json:"session"`
	Modules []models.Module `json:"modules"`
}

// PermissionResponse is the body of GET /session/permissions/{module}
type PermissionResponse struct {
	Module  models.Module `json:"module"`
	Allowed bool          `json:"allowed"`
}

// SessionHandler exposes the resolved session of the caller
type SessionHandler struct {
	logger *zap.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(logger *zap.Logger) *SessionHandler {
	return &SessionHandler{logger: logger}
}

// HandleGet handles GET /session
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	response := SessionResponse{
		Session: session,
		Modules: access.PermittedModules(session),
	}
	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandlePermission handles GET /session/permissions/{module}
func (h *SessionHandler) HandlePermission(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	module := models.Module(chi.URLParam(r, "module"))
	if !isKnownModule(module) {
		_ = utils.WriteNotFound(w, "Unknown module")
		return
	}

	response := PermissionResponse{
		Module:  module,
		Allowed: access.HasPermission(session, module),
	}
	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func isKnownModule(module models.Module) bool {
	for _, m := range models.AllModules {
		if m == module {
			return true
		}
	}
	return false
}
