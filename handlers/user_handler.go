package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mygain/portal-gateway/middleware"
	"github.com/mygain/portal-gateway/models"
	"github.com/mygain/portal-gateway/services/users"
	"github.com/mygain/portal-gateway/utils"
	"go.uber.org/zap"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// UserService is the account management surface used by UserHandler
type UserService interface {
	ListEmployees(ctx context.Context) ([]*models.Account, error)
	CreateEmployee(ctx context.Context, input users.CreateEmployeeInput) (*models.Account, error)
	UpdateEmployee(ctx context.Context, id string, input users.UpdateEmployeeInput) error
	DeleteEmployee(ctx context.Context, id string) error
}

// ListUsersResponse is the body of GET /users
type ListUsersResponse struct {
	Users []*models.Account `json:"users"`
}

// UserResponse is the body of POST /users
type UserResponse struct {
	User *models.Account `json:"user"`
}

// UserHandler handles the admin account endpoints
type UserHandler struct {
	service UserService
	logger  *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListEmployees(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}

	if err := utils.WriteOK(w, ListUsersResponse{Users: accounts}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleCreate handles POST /users
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input users.CreateEmployeeInput
	if err := decodeBody(w, r, &input); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	account, err := h.service.CreateEmployee(r.Context(), input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.audit(r, "account created", account.ID, zap.String("sub_role", string(account.SubRole)))

	if err := utils.WriteCreated(w, UserResponse{User: account}); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleUpdate handles PATCH /users/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var input users.UpdateEmployeeInput
	if err := decodeBody(w, r, &input); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}

	if err := h.service.UpdateEmployee(r.Context(), id, input); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.audit(r, "account updated", id,
		zap.Bool("password_changed", input.Password != nil && *input.Password != ""),
		zap.Bool("sub_role_changed", input.SubRole != nil && *input.SubRole != ""),
	)

	if err := utils.WriteAck(w); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// HandleDelete handles DELETE /users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteEmployee(r.Context(), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.audit(r, "account deleted", id)

	if err := utils.WriteAck(w); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func (h *UserHandler) audit(r *http.Request, msg, targetID string, fields ...zap.Field) {
	actor, actorRole := "", ""
	if ident := middleware.GetIdentityFromContext(r.Context()); ident != nil {
		actor = ident.ID
	}
	if record := middleware.GetRoleRecordFromContext(r.Context()); record != nil {
		actorRole = string(record.SubRole)
	}
	h.logger.Info(msg, append([]zap.Field{
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("actor_id", actor),
		zap.String("actor_sub_role", actorRole),
		zap.String("target_id", targetID),
	}, fields...)...)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
