package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mygain/portal-gateway/identity"
	"github.com/mygain/portal-gateway/models"
	"github.com/mygain/portal-gateway/repositories"
	"github.com/mygain/portal-gateway/services"
	"github.com/mygain/portal-gateway/utils"
	"go.uber.org/zap"
)

// TokenExchanger exchanges a bearer token for the identity it belongs to
type TokenExchanger interface {
	GetUser(ctx context.Context, accessToken string) (*models.Identity, error)
}

// TokenVerifier checks a token locally and returns its subject
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// SessionResolver builds the session of an identity
type SessionResolver interface {
	ResolveSession(ctx context.Context, identity *models.Identity) *models.Session
}

// AuthMiddleware provides authentication and authorization middleware
type AuthMiddleware struct {
	exchanger TokenExchanger
	verifier  TokenVerifier
	roles     repositories.RoleRepository
	resolver  SessionResolver
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. verifier may be nil, in which
// case every token goes straight to the identity provider.
func NewAuthMiddleware(
	exchanger TokenExchanger,
	verifier TokenVerifier,
	roles repositories.RoleRepository,
	resolver SessionResolver,
	logger *zap.Logger,
) *AuthMiddleware {
	return &AuthMiddleware{
		exchanger: exchanger,
		verifier:  verifier,
		roles:     roles,
		resolver:  resolver,
		logger:    logger,
	}
}

// RequireAuth requires a bearer token that the identity provider accepts
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Debug("missing bearer token",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, services.ErrMissingToken.Message)
			return
		}

		var subject string
		if m.verifier != nil {
			sub, err := m.verifier.Verify(ctx, token)
			if err != nil {
				m.logger.Warn("token rejected by local verification",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteUnauthorized(w, services.ErrInvalidToken.Message)
				return
			}
			subject = sub
		}

		ident, err := m.exchanger.GetUser(ctx, token)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidToken) {
				m.logger.Warn("token rejected by identity provider",
					zap.String("request_id", requestID))
			} else {
				m.logger.Error("token exchange failed",
					zap.String("request_id", requestID),
					zap.Error(err))
			}
			_ = utils.WriteUnauthorized(w, services.ErrInvalidToken.Message)
			return
		}

		if subject != "" && subject != ident.ID {
			m.logger.Warn("token subject does not match identity",
				zap.String("request_id", requestID),
				zap.String("subject", subject),
				zap.String("identity_id", ident.ID))
			_ = utils.WriteUnauthorized(w, services.ErrInvalidToken.Message)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("identity_id", ident.ID))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, ident)))
	})
}

// RequireAdmin requires the caller to hold the (employee, admin) role record.
// The record is read from the role store on every request.
// This should be called after RequireAuth.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		ident := GetIdentityFromContext(ctx)
		if ident == nil {
			m.logger.Error("identity not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		record, err := m.roles.GetByIdentityID(ctx, ident.ID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			m.logger.Error("failed to load role record",
				zap.String("request_id", requestID),
				zap.String("identity_id", ident.ID),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, services.ErrRoleLookupFailed.Message)
			return
		}

		if !record.IsEmployeeAdmin() {
			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.String("identity_id", ident.ID),
				zap.Bool("has_record", record != nil))
			_ = utils.WriteForbidden(w, services.ErrInsufficientPermissions.Message)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithRoleRecord(ctx, record)))
	})
}

// ResolveSession attaches the caller's session. It never rejects a request:
// a caller without role data gets a session that grants nothing.
// This should be called after RequireAuth.
func (m *AuthMiddleware) ResolveSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ident := GetIdentityFromContext(ctx)
		if ident == nil {
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		session := m.resolver.ResolveSession(ctx, ident)
		next.ServeHTTP(w, r.WithContext(WithSession(ctx, session)))
	})
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
