package model

// LegacyRole is the fixed role enum stored on every user row. It predates the
// relational roles table and still acts as the permission floor.
type LegacyRole string

const (
	LegacyRoleSuperAdmin LegacyRole = "super_admin"
	LegacyRoleAdmin      LegacyRole = "admin"
	LegacyRoleManager    LegacyRole = "manager"
	LegacyRoleHR         LegacyRole = "hr"
	LegacyRoleEmployee   LegacyRole = "employee"
)

// LegacyRoles lists the enum values from the highest tier to the lowest.
var LegacyRoles = []LegacyRole{
	LegacyRoleSuperAdmin,
	LegacyRoleAdmin,
	LegacyRoleHR,
	LegacyRoleManager,
	LegacyRoleEmployee,
}

// Valid reports whether r is one of the known enum values.
func (r LegacyRole) Valid() bool {
	_, ok := legacyFallback[r]
	return ok
}

// IsSuperAdmin reports whether r is the super-admin tier.
func (r LegacyRole) IsSuperAdmin() bool {
	return r == LegacyRoleSuperAdmin
}

// ParseLegacyRole matches a stored enum value exactly. Case or whitespace
// variants are corrupt state, not aliases; the second return is false for
// anything unrecognized.
func ParseLegacyRole(raw string) (LegacyRole, bool) {
	r := LegacyRole(raw)
	if !r.Valid() {
		return r, false
	}
	return r, true
}

var employeeFallback = []Permission{
	PermissionDashboardView,
	PermissionProfileViewOwn,
	PermissionProfileEditOwn,
	PermissionLeavesViewOwn,
	PermissionLeavesRequest,
	PermissionExpensesViewOwn,
	PermissionExpensesSubmit,
	PermissionPayrollViewOwn,
	PermissionMessagesView,
}

var managerFallback = concatPermissions(employeeFallback,
	PermissionLeavesViewTeam,
	PermissionLeavesApprove,
	PermissionExpensesApprove,
	PermissionUsersView,
	PermissionDepartmentsView,
	PermissionTrainingViewOwn,
	PermissionReportsView,
)

var hrFallback = concatPermissions(managerFallback,
	PermissionUsersCreate,
	PermissionUsersEdit,
	PermissionDepartmentsManage,
	PermissionLeavesViewAll,
	PermissionLeavesManage,
	PermissionPayrollView,
	PermissionRecruitmentView,
	PermissionRecruitmentManage,
	PermissionTrainingView,
	PermissionTrainingManage,
)

var adminFallback = concatPermissions(hrFallback,
	PermissionUsersDelete,
	PermissionRolesView,
	PermissionRolesManage,
	PermissionPermissionsView,
	PermissionMenusManage,
	PermissionPayrollManage,
	PermissionSettingsManage,
	PermissionAuditView,
)

var superAdminFallback = concatPermissions(adminFallback, PermissionWildcard)

// legacyFallback is the Enum Fallback Table: the non-configurable baseline
// permissions of every legacy role.
var legacyFallback = map[LegacyRole][]Permission{
	LegacyRoleSuperAdmin: superAdminFallback,
	LegacyRoleAdmin:      adminFallback,
	LegacyRoleHR:         hrFallback,
	LegacyRoleManager:    managerFallback,
	LegacyRoleEmployee:   employeeFallback,
}

// FallbackPermissions returns a copy of the baseline permissions for r, or nil
// when r is not a known enum value.
func (r LegacyRole) FallbackPermissions() []Permission {
	perms, ok := legacyFallback[r]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

func concatPermissions(base []Permission, extra ...Permission) []Permission {
	out := make([]Permission, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
