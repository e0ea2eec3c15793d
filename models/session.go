package models

import "strings"

// SessionKind distinguishes internal staff from external customers in the portal UI
type SessionKind string

const (
	KindEmployee SessionKind = "employee"
	KindCustomer SessionKind = "customer"
)

// Session is the resolved view of an authenticated identity.
// Role and SubRole are empty when no role record exists. A sub-role outside the
// role's domain is kept as-is; it grants no module from the permission table.
type Session struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Kind    SessionKind `json:"kind"`
	Role    Role        `json:"role,omitempty"`
	SubRole SubRole     `json:"subRole,omitempty"`
}

// NewSession builds a session for identity. A nil record or an unknown role yields a session without role.
func NewSession(identity *Identity, record *RoleRecord) *Session {
	s := &Session{
		ID:    identity.ID,
		Name:  identity.DisplayName(),
		Email: strings.ToLower(identity.Email),
		Kind:  KindEmployee,
	}
	if record != nil && record.Role.IsValid() {
		s.Role = record.Role
		s.SubRole = record.SubRole
	}
	if s.Role == RoleCustomer {
		s.Kind = KindCustomer
	}
	return s
}

// HasRole reports whether both role and sub-role are set
func (s *Session) HasRole() bool {
	return s != nil && s.Role != "" && s.SubRole != ""
}
