package models

import "strings"

// Role is the top-level classification of a portal account
type Role string

const (
	RoleEmployee Role = "employee"
	RoleCustomer Role = "customer"
)

// SubRole refines a Role. Each sub-role belongs to exactly one role domain.
type SubRole string

// Employee domain
const (
	SubRoleAdmin          SubRole = "admin"
	SubRoleSales          SubRole = "sales"
	SubRoleLogistics      SubRole = "logistics"
	SubRoleFinance        SubRole = "finance"
	SubRoleHR             SubRole = "hr"
	SubRoleInfrastructure SubRole = "infrastructure"
)

// Customer domain
const (
	SubRoleCourses          SubRole = "courses"
	SubRoleAgents           SubRole = "agents"
	SubRoleCoursesAndAgents SubRole = "courses_and_agents"
)

// UnassignedLabel is shown for accounts without a recognised sub-role
const UnassignedLabel = "Sem Cargo"

// Module identifies a portal feature area
type Module string

const (
	ModuleERP        Module = "erp"
	ModuleAgents     Module = "agents"
	ModuleCRM        Module = "crm"
	ModuleUsers      Module = "users"
	ModuleFinancial  Module = "financial"
	ModuleEmail      Module = "email"
	ModuleCourses    Module = "courses"
	ModuleConfigure  Module = "configure"
	ModuleGPTTraders Module = "gpt-traders"
)

// AllModules lists every module known to the portal
var AllModules = []Module{
	ModuleERP, ModuleAgents, ModuleCRM, ModuleUsers, ModuleFinancial,
	ModuleEmail, ModuleCourses, ModuleConfigure, ModuleGPTTraders,
}

// EmployeeSubRoles lists the employee domain in display order
var EmployeeSubRoles = []SubRole{
	SubRoleAdmin, SubRoleSales, SubRoleLogistics, SubRoleFinance, SubRoleHR, SubRoleInfrastructure,
}

// CustomerSubRoles lists the customer domain in display order
var CustomerSubRoles = []SubRole{
	SubRoleCourses, SubRoleAgents, SubRoleCoursesAndAgents,
}

var subRoleLabels = map[SubRole]string{
	SubRoleAdmin:            "Admin",
	SubRoleSales:            "Vendas",
	SubRoleLogistics:        "Logística",
	SubRoleFinance:          "Financeiro",
	SubRoleHR:               "RH",
	SubRoleInfrastructure:   "Infraestrutura",
	SubRoleCourses:          "Cursos",
	SubRoleAgents:           "Agentes",
	SubRoleCoursesAndAgents: "Cursos e Agentes",
}

// Values written by the previous portal backend, still present in older rows
var legacyRoles = map[string]Role{
	"colaborador": RoleEmployee,
	"cliente":     RoleCustomer,
}

var legacySubRoles = map[string]SubRole{
	"vendas":         SubRoleSales,
	"logistica":      SubRoleLogistics,
	"financeiro":     SubRoleFinance,
	"rh":             SubRoleHR,
	"infraestrutura": SubRoleInfrastructure,
	"cursos":         SubRoleCourses,
	"agentes":        SubRoleAgents,
	"cursos_agentes": SubRoleCoursesAndAgents,
}

// ParseRole maps a stored or submitted value to a Role
func ParseRole(value string) (Role, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch Role(v) {
	case RoleEmployee, RoleCustomer:
		return Role(v), true
	}
	if r, ok := legacyRoles[v]; ok {
		return r, true
	}
	return "", false
}

// ParseSubRole accepts a canonical value, a display label, or a legacy stored value
func ParseSubRole(value string) (SubRole, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", false
	}
	for sr, label := range subRoleLabels {
		if label == v {
			return sr, true
		}
	}
	lower := strings.ToLower(v)
	if _, ok := subRoleLabels[SubRole(lower)]; ok {
		return SubRole(lower), true
	}
	if sr, ok := legacySubRoles[lower]; ok {
		return sr, true
	}
	return "", false
}

// Role returns the domain the sub-role belongs to, or "" when unknown
func (s SubRole) Role() Role {
	switch s {
	case SubRoleAdmin, SubRoleSales, SubRoleLogistics, SubRoleFinance, SubRoleHR, SubRoleInfrastructure:
		return RoleEmployee
	case SubRoleCourses, SubRoleAgents, SubRoleCoursesAndAgents:
		return RoleCustomer
	}
	return ""
}

// Label returns the display label shown in the portal
func (s SubRole) Label() string {
	if label, ok := subRoleLabels[s]; ok {
		return label
	}
	return UnassignedLabel
}

// IsValid reports whether s is a known sub-role
func (s SubRole) IsValid() bool {
	return s.Role() != ""
}

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleCustomer
}
