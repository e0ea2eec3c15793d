package access

import (
	"context"
	"errors"
	"time"

	"github.com/mygain/portal-gateway/models"
	"github.com/mygain/portal-gateway/repositories"
	"go.uber.org/zap"
)

// DefaultLookupTimeout bounds a role store lookup when none is configured
const DefaultLookupTimeout = 5 * time.Second

// Resolver merges identities with their role records into sessions
type Resolver struct {
	roles         repositories.RoleRepository
	cache         *RoleCache
	lookupTimeout time.Duration
	logger        *zap.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(roles repositories.RoleRepository, cache *RoleCache, lookupTimeout time.Duration, logger *zap.Logger) *Resolver {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	return &Resolver{
		roles:         roles,
		cache:         cache,
		lookupTimeout: lookupTimeout,
		logger:        logger,
	}
}

// ResolveSession returns nil for a nil identity. Otherwise it always returns a
// session; when the role record is missing or cannot be loaded the session
// carries no role and every gated module is denied.
func (r *Resolver) ResolveSession(ctx context.Context, identity *models.Identity) *models.Session {
	if identity == nil {
		return nil
	}

	record, err := r.lookup(ctx, identity.ID)
	if err != nil {
		r.logger.Warn("role lookup failed, resolving session without role",
			zap.String("identity_id", identity.ID),
			zap.Error(err))
		return models.NewSession(identity, nil)
	}

	return models.NewSession(identity, record)
}

// Invalidate drops any cached role record of an identity
func (r *Resolver) Invalidate(identityID string) {
	if r.cache != nil {
		r.cache.Invalidate(identityID)
	}
}

func (r *Resolver) lookup(ctx context.Context, identityID string) (*models.RoleRecord, error) {
	if r.cache != nil {
		if record, ok := r.cache.Get(identityID); ok {
			return record, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	record, err := r.roles.GetByIdentityID(ctx, identityID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		record = nil
	case err != nil:
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(identityID, record)
	}
	return record, nil
}
