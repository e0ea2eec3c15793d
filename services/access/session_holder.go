package access

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mygain/portal-gateway/models"
	"go.uber.org/zap"
)

// AuthEventType is an authentication-state transition reported by the identity provider
type AuthEventType string

const (
	EventSignedIn       AuthEventType = "signed_in"
	EventTokenRefreshed AuthEventType = "token_refreshed"
	EventSignedOut      AuthEventType = "signed_out"
)

// AuthEvent carries the identity after the transition. Identity is nil on sign-out.
type AuthEvent struct {
	Type     AuthEventType
	Identity *models.Identity
}

// SessionHolder keeps the current session of a long-lived client and rebuilds
// it on every authentication event. Readers always see a complete session.
type SessionHolder struct {
	resolver   *Resolver
	current    atomic.Pointer[models.Session]
	generation atomic.Uint64
	mu         sync.Mutex
	logger     *zap.Logger
}

// NewSessionHolder creates an empty holder (not authenticated)
func NewSessionHolder(resolver *Resolver, logger *zap.Logger) *SessionHolder {
	return &SessionHolder{
		resolver: resolver,
		logger:   logger,
	}
}

// Current returns the current session, or nil when signed out
func (h *SessionHolder) Current() *models.Session {
	return h.current.Load()
}

// HasPermission checks the current session
func (h *SessionHolder) HasPermission(module models.Module) bool {
	return HasPermission(h.Current(), module)
}

// Apply rebuilds the session for event and swaps it in. A rebuild that is
// overtaken by a later event is discarded; Apply then returns false.
func (h *SessionHolder) Apply(ctx context.Context, event AuthEvent) bool {
	gen := h.generation.Add(1)

	var next *models.Session
	if event.Type != EventSignedOut {
		next = h.resolver.ResolveSession(ctx, event.Identity)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.generation.Load() != gen {
		h.logger.Debug("discarding stale session rebuild",
			zap.String("event", string(event.Type)),
			zap.Uint64("generation", gen))
		return false
	}
	h.current.Store(next)
	return true
}
