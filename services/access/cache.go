package access

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mygain/portal-gateway/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roleCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_role_cache_hits_total",
		Help: "Role record lookups served from the cache.",
	})
	roleCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_role_cache_misses_total",
		Help: "Role record lookups that went to the role store.",
	})
)

// RoleCache is a per-instance LRU of role records with a TTL.
// A nil record is cached for identities known to have none.
type RoleCache struct {
	entries *expirable.LRU[string, *models.RoleRecord]
}

// NewRoleCache creates a cache holding up to maxSize identities for ttl each
func NewRoleCache(maxSize int, ttl time.Duration) *RoleCache {
	return &RoleCache{
		entries: expirable.NewLRU[string, *models.RoleRecord](maxSize, nil, ttl),
	}
}

// Get returns the cached record and whether the identity was cached at all
func (c *RoleCache) Get(identityID string) (*models.RoleRecord, bool) {
	record, ok := c.entries.Get(identityID)
	if ok {
		roleCacheHits.Inc()
		return record, true
	}
	roleCacheMisses.Inc()
	return nil, false
}

// Set stores the lookup result for an identity
func (c *RoleCache) Set(identityID string, record *models.RoleRecord) {
	c.entries.Add(identityID, record)
}

// Invalidate drops an identity so the next lookup reaches the store
func (c *RoleCache) Invalidate(identityID string) {
	c.entries.Remove(identityID)
}

// Len returns the number of cached identities
func (c *RoleCache) Len() int {
	return c.entries.Len()
}
