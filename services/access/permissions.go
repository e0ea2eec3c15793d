package access

import (
	"sort"

	"github.com/mygain/portal-gateway/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "portal_access_decisions_total",
	Help: "Permission checks evaluated, by module and result.",
}, []string{"module", "result"})

// PermissionTable maps each sub-role to the modules it unlocks.
// erp and agents are granted by role and never appear here.
var PermissionTable = map[models.SubRole][]models.Module{
	models.SubRoleAdmin:            {models.ModuleCRM, models.ModuleUsers, models.ModuleFinancial, models.ModuleEmail},
	models.SubRoleSales:            {models.ModuleCRM},
	models.SubRoleHR:               {models.ModuleUsers},
	models.SubRoleFinance:          {models.ModuleFinancial},
	models.SubRoleLogistics:        {models.ModuleEmail},
	models.SubRoleInfrastructure:   {models.ModuleEmail},
	models.SubRoleCourses:          {models.ModuleCourses},
	models.SubRoleAgents:           {models.ModuleConfigure, models.ModuleGPTTraders},
	models.SubRoleCoursesAndAgents: {models.ModuleConfigure, models.ModuleGPTTraders, models.ModuleCourses},
}

// HasPermission reports whether session may use module. It performs no I/O.
func HasPermission(session *models.Session, module models.Module) bool {
	allowed := hasPermission(session, module)
	result := "deny"
	if allowed {
		result = "allow"
	}
	decisionsTotal.WithLabelValues(string(module), result).Inc()
	return allowed
}

func hasPermission(session *models.Session, module models.Module) bool {
	if session == nil || !session.HasRole() {
		return false
	}

	switch module {
	case models.ModuleERP:
		return session.Role == models.RoleEmployee
	case models.ModuleAgents:
		return session.Role == models.RoleCustomer
	}

	// A sub-role outside the session's role domain grants nothing
	if session.SubRole.Role() != session.Role {
		return false
	}
	for _, m := range PermissionTable[session.SubRole] {
		if m == module {
			return true
		}
	}
	return false
}

// PermittedModules returns every module the session may use, sorted by name
func PermittedModules(session *models.Session) []models.Module {
	modules := make([]models.Module, 0, len(models.AllModules))
	for _, m := range models.AllModules {
		if hasPermission(session, m) {
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i] < modules[j] })
	return modules
}
