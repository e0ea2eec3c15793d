package models

import (
	"strings"
	"time"
)

// AccountStatus is the coarse presence indicator shown in account listings
type AccountStatus string

const (
	StatusOnline  AccountStatus = "online"
	StatusOffline AccountStatus = "offline"
)

// FallbackName is used when neither a display name nor an email is available
const FallbackName = "Sem Nome"

// Identity is an account as known to the identity provider
type Identity struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name,omitempty"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DisplayName returns the full name, the email local part, or FallbackName
func (i *Identity) DisplayName() string {
	if name := strings.TrimSpace(i.FullName); name != "" {
		return name
	}
	if local, _, _ := strings.Cut(i.Email, "@"); local != "" {
		return local
	}
	return FallbackName
}

// OnlineAt reports whether the identity signed in within window of now
func (i *Identity) OnlineAt(now time.Time, window time.Duration) bool {
	if i.LastSignInAt == nil {
		return false
	}
	return now.Sub(*i.LastSignInAt) <= window
}

// RoleRecord is the portal authorization data attached to an identity
type RoleRecord struct {
	IdentityID string    `json:"identity_id" db:"supabase_id"`
	Role       Role      `json:"role" db:"role"`
	SubRole    SubRole   `json:"sub_role" db:"sub_role"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the RoleRecord model
func (RoleRecord) TableName() string {
	return "cargos"
}

// NewRoleRecord creates a RoleRecord for an identity
func NewRoleRecord(identityID string, role Role, subRole SubRole) *RoleRecord {
	now := time.Now()
	return &RoleRecord{
		IdentityID: identityID,
		Role:       role,
		SubRole:    subRole,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Valid reports whether the sub-role belongs to the role's domain
func (r *RoleRecord) Valid() bool {
	return r != nil && r.Role.IsValid() && r.SubRole.Role() == r.Role
}

// Label returns the display label of the sub-role, or UnassignedLabel when the
// sub-role is missing or outside the role's domain
func (r *RoleRecord) Label() string {
	if !r.Valid() {
		return UnassignedLabel
	}
	return r.SubRole.Label()
}

// IsEmployeeAdmin returns true for the (employee, admin) pair
func (r *RoleRecord) IsEmployeeAdmin() bool {
	return r != nil && r.Role == RoleEmployee && r.SubRole == SubRoleAdmin
}

// Account is the listing view of an employee account
type Account struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	SubRole   SubRole       `json:"subRole"`
	RoleLabel string        `json:"roleLabel"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// RoleRecordFromStored maps raw stored values onto a RoleRecord. Legacy aliases
// are accepted; unknown values are kept verbatim so the record fails Valid.
func RoleRecordFromStored(identityID, role, subRole string) *RoleRecord {
	record := &RoleRecord{IdentityID: identityID}

	if r, ok := ParseRole(role); ok {
		record.Role = r
	} else {
		record.Role = Role(role)
	}
	if s, ok := ParseSubRole(subRole); ok {
		record.SubRole = s
	} else {
		record.SubRole = SubRole(subRole)
	}
	return record
}
