package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mygain/portal-gateway/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// IdentityKey is the context key for the authenticated identity
	IdentityKey contextKey = "identity"

	// RoleRecordKey is the context key for the caller's role record
	RoleRecordKey contextKey = "role_record"

	// SessionKey is the context key for the resolved session
	SessionKey contextKey = "session"
)

// GetRequestIDFromContext retrieves the ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// GetIdentityFromContext retrieves the authenticated identity from context
func GetIdentityFromContext(ctx context.Context) *models.Identity {
	if identity, ok := ctx.Value(IdentityKey).(*models.Identity); ok {
		return identity
	}
	return nil
}

// WithIdentity adds the authenticated identity to the context
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetRoleRecordFromContext retrieves the caller's role record from context
func GetRoleRecordFromContext(ctx context.Context) *models.RoleRecord {
	if record, ok := ctx.Value(RoleRecordKey).(*models.RoleRecord); ok {
		return record
	}
	return nil
}

// WithRoleRecord adds the caller's role record to the context
func WithRoleRecord(ctx context.Context, record *models.RoleRecord) context.Context {
	return context.WithValue(ctx, RoleRecordKey, record)
}

// GetSessionFromContext retrieves the resolved session from context
func GetSessionFromContext(ctx context.Context) *models.Session {
	if session, ok := ctx.Value(SessionKey).(*models.Session); ok {
		return session
	}
	return nil
}

// WithSession adds the resolved session to the context
func WithSession(ctx context.Context, session *models.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}
