// Package users manages employee accounts across the identity provider and the role store.
package users

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mygain/portal-gateway/config"
	"github.com/mygain/portal-gateway/identity"
	"github.com/mygain/portal-gateway/models"
	"github.com/mygain/portal-gateway/repositories"
	"github.com/mygain/portal-gateway/services"
	"github.com/mygain/portal-gateway/utils"
	"go.uber.org/zap"
)

const (
	defaultPageSize     = 200
	defaultOnlineWindow = 15 * time.Minute
	compensationTimeout = 10 * time.Second
)

// Directory is the part of the identity provider admin API used to manage accounts
type Directory interface {
	ListUsers(ctx context.Context, page, perPage int) ([]*models.Identity, error)
	GetUserByID(ctx context.Context, id string) (*models.Identity, error)
	CreateUser(ctx context.Context, params identity.CreateUserParams) (*models.Identity, error)
	UpdateUser(ctx context.Context, id string, params identity.UpdateUserParams) (*models.Identity, error)
	DeleteUser(ctx context.Context, id string) error
}

// Invalidator drops cached role data of an identity
type Invalidator interface {
	Invalidate(identityID string)
}

// CreateEmployeeInput is the payload of a new employee account
type CreateEmployeeInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	SubRole  string `json:"subRole" validate:"required,employee_subrole"`
}

// UpdateEmployeeInput holds optional changes. Nil or blank fields are left untouched.
type UpdateEmployeeInput struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
	SubRole  *string `json:"subRole,omitempty" validate:"omitempty,employee_subrole"`
}

// Service implements employee account management on top of the identity
// provider and the role store
type Service struct {
	directory    Directory
	roles        repositories.RoleRepository
	sessions     Invalidator
	pageSize     int
	onlineWindow time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// NewService creates a new users Service. sessions may be nil.
func NewService(directory Directory, roles repositories.RoleRepository, sessions Invalidator, cfg config.UsersConfig, logger *zap.Logger) *Service {
	s := &Service{
		directory:    directory,
		roles:        roles,
		sessions:     sessions,
		pageSize:     cfg.PageSize,
		onlineWindow: cfg.OnlineWindow,
		now:          time.Now,
		logger:       logger.With(zap.String("component", "users_service")),
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	if s.onlineWindow <= 0 {
		s.onlineWindow = defaultOnlineWindow
	}
	return s
}

// ListEmployees returns every account whose role record has the employee role,
// in provider order. Records without a usable sub-role are listed as unassigned.
// Any failure aborts the whole listing.
func (s *Service) ListEmployees(ctx context.Context) ([]*models.Account, error) {
	var identities []*models.Identity
	for page := 1; ; page++ {
		batch, err := s.directory.ListUsers(ctx, page, s.pageSize)
		if err != nil {
			return nil, identityError(err)
		}
		identities = append(identities, batch...)
		if len(batch) < s.pageSize {
			break
		}
	}

	accounts := make([]*models.Account, 0, len(identities))
	if len(identities) == 0 {
		return accounts, nil
	}

	ids := make([]string, len(identities))
	for i, ident := range identities {
		ids[i] = ident.ID
	}

	records, err := s.roles.ListByIdentityIDs(ctx, ids)
	if err != nil {
		return nil, services.WrapInternal(services.ErrRoleLookupFailed.Message, err)
	}

	byID := make(map[string]*models.RoleRecord, len(records))
	for _, record := range records {
		byID[record.IdentityID] = record
	}

	now := s.now()
	for _, ident := range identities {
		record := byID[ident.ID]
		if record == nil || record.Role != models.RoleEmployee {
			continue
		}

		status := models.StatusOffline
		if ident.OnlineAt(now, s.onlineWindow) {
			status = models.StatusOnline
		}
		accounts = append(accounts, &models.Account{
			ID:        ident.ID,
			Name:      ident.DisplayName(),
			Email:     ident.Email,
			SubRole:   record.SubRole,
			RoleLabel: record.Label(),
			Status:    status,
			CreatedAt: ident.CreatedAt,
		})
	}

	return accounts, nil
}

// CreateEmployee provisions an identity and its employee role record. When the
// record cannot be stored the identity is deleted again.
func (s *Service) CreateEmployee(ctx context.Context, input CreateEmployeeInput) (*models.Account, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.SubRole = strings.TrimSpace(input.SubRole)

	if err := utils.ValidateStruct(&input); err != nil {
		return nil, validationError(err)
	}
	subRole, _ := models.ParseSubRole(input.SubRole)

	created, err := s.directory.CreateUser(ctx, identity.CreateUserParams{
		Email:    input.Email,
		Password: input.Password,
		FullName: input.Name,
	})
	if err != nil {
		return nil, identityError(err)
	}

	record := models.NewRoleRecord(created.ID, models.RoleEmployee, subRole)
	if err := s.roles.Insert(ctx, record); err != nil {
		return nil, s.compensateCreate(ctx, created.ID, err)
	}

	s.invalidate(created.ID)
	s.logger.Info("employee created",
		zap.String("identity_id", created.ID),
		zap.String("sub_role", string(subRole)))

	return &models.Account{
		ID:        created.ID,
		Name:      input.Name,
		Email:     input.Email,
		SubRole:   subRole,
		RoleLabel: subRole.Label(),
		Status:    models.StatusOffline,
		CreatedAt: created.CreatedAt,
	}, nil
}

// compensateCreate removes an identity whose role record could not be stored.
// A failed delete is confirmed with a lookup, since the provider may have
// applied it before the error.
func (s *Service) compensateCreate(ctx context.Context, identityID string, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.directory.DeleteUser(ctx, identityID); err != nil && !s.identityGone(ctx, identityID) {
		s.logger.Error("failed to remove identity after role store failure, account is orphaned",
			zap.String("identity_id", identityID),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return services.NewDomainError(services.ErrorTypeCompensationFailed,
			services.ErrCompensationFailed.Message,
			errors.Join(cause, err)).
			WithDetail("identity_id", identityID)
	}

	s.logger.Warn("role store failed, identity removed",
		zap.String("identity_id", identityID),
		zap.Error(cause))
	return services.WrapInternal(services.ErrRoleStoreFailed.Message, cause)
}

// UpdateEmployee applies identity changes first and then the sub-role.
// A failed sub-role write does not roll back the identity changes.
func (s *Service) UpdateEmployee(ctx context.Context, id string, input UpdateEmployeeInput) error {
	if err := utils.ValidateUUID(id); err != nil {
		return services.WrapError(services.ErrorTypeValidation, services.ErrInvalidID.Message, err)
	}

	input.Name = trimmedOrNil(input.Name)
	input.Email = trimmedOrNil(input.Email)
	input.SubRole = trimmedOrNil(input.SubRole)
	if input.Password != nil && *input.Password == "" {
		input.Password = nil
	}

	if err := utils.ValidateStruct(&input); err != nil {
		return validationError(err)
	}

	params := identity.UpdateUserParams{
		Email:    input.Email,
		Password: input.Password,
		FullName: input.Name,
	}
	if !params.IsEmpty() {
		if _, err := s.directory.UpdateUser(ctx, id, params); err != nil {
			return identityError(err)
		}
	}

	if input.SubRole != nil {
		subRole, _ := models.ParseSubRole(*input.SubRole)
		record := models.NewRoleRecord(id, models.RoleEmployee, subRole)
		if err := s.roles.Upsert(ctx, record); err != nil {
			s.logger.Error("sub-role update failed after identity update",
				zap.String("identity_id", id),
				zap.Bool("identity_changed", !params.IsEmpty()),
				zap.Error(err))
			return services.WrapInternal(services.ErrRoleStoreFailed.Message, err)
		}
	}

	s.invalidate(id)
	s.logger.Info("employee updated",
		zap.String("identity_id", id),
		zap.Bool("identity_changed", !params.IsEmpty()),
		zap.Bool("sub_role_changed", input.SubRole != nil))
	return nil
}

// DeleteEmployee removes the identity and then, best effort, its role record
func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	if err := utils.ValidateUUID(id); err != nil {
		return services.WrapError(services.ErrorTypeValidation, services.ErrInvalidID.Message, err)
	}

	if err := s.directory.DeleteUser(ctx, id); err != nil {
		return identityError(err)
	}

	if err := s.roles.Delete(ctx, id); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		s.logger.Warn("failed to delete role record of removed identity",
			zap.String("identity_id", id),
			zap.Error(err))
	}

	s.invalidate(id)
	s.logger.Info("employee deleted", zap.String("identity_id", id))
	return nil
}

func (s *Service) identityGone(ctx context.Context, id string) bool {
	_, err := s.directory.GetUserByID(ctx, id)
	return errors.Is(err, identity.ErrUserNotFound)
}

func (s *Service) invalidate(id string) {
	if s.sessions != nil {
		s.sessions.Invalidate(id)
	}
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// validationError converts a validator failure to the message shown to admins
func validationError(err error) error {
	var vErr *utils.ValidationError
	if !errors.As(err, &vErr) {
		return services.WrapError(services.ErrorTypeValidation, services.ErrInvalidInput.Message, err)
	}

	message := vErr.Message
	switch {
	case vErr.HasTag("required"):
		message = services.ErrMissingFields.Message
	case vErr.FailedTag("password") == "min":
		message = services.ErrWeakPassword.Message
	case vErr.FailedTag("subRole") == "employee_subrole":
		message = services.ErrInvalidSubRole.Message
	case vErr.FailedTag("email") == "email":
		message = "Invalid email"
	}

	domainErr := services.NewDomainError(services.ErrorTypeValidation, message, err)
	for field, msg := range utils.GetValidationFields(err) {
		domainErr.WithDetail(field, msg)
	}
	return domainErr
}

// identityError maps identity provider failures onto domain errors
func identityError(err error) error {
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		return services.WrapError(services.ErrorTypeNotFound, services.ErrAccountNotFound.Message, err)
	case errors.Is(err, identity.ErrEmailExists):
		return services.WrapError(services.ErrorTypeConflict, services.ErrDuplicateEmail.Message, err)
	}

	var apiErr *identity.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
		return services.WrapError(services.ErrorTypeValidation, apiErr.Message, err)
	}
	return services.WrapExternal(services.ErrIdentityProvider.Message, err)
}
