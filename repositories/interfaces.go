package repositories

import (
	"context"
	"errors"

	"github.com/mygain/portal-gateway/models"
)

var (
	// ErrNotFound is returned when no role record exists for an identity
	ErrNotFound = errors.New("role record not found")

	// ErrDuplicate is returned by Insert when the identity already has a role record
	ErrDuplicate = errors.New("role record already exists")
)

// RoleRepository handles role record (cargo) operations.
// Implementations must be safe for concurrent use.
type RoleRepository interface {
	// GetByIdentityID retrieves the role record of one identity.
	// Returns ErrNotFound when the identity has no record.
	GetByIdentityID(ctx context.Context, identityID string) (*models.RoleRecord, error)

	// ListByIdentityIDs retrieves the records of every listed identity that has one.
	// Identities without a record are absent from the result.
	ListByIdentityIDs(ctx context.Context, identityIDs []string) ([]*models.RoleRecord, error)

	// Insert stores a new record. Returns ErrDuplicate if one already exists.
	Insert(ctx context.Context, record *models.RoleRecord) error

	// Upsert creates the record or replaces role and sub-role of the existing one
	Upsert(ctx context.Context, record *models.RoleRecord) error

	// Delete removes the record of an identity. Returns ErrNotFound when absent.
	Delete(ctx context.Context, identityID string) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}
