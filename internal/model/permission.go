package model

// Permission represents a dot-namespaced capability code, e.g. "expenses.approve".
type Permission string

// PermissionWildcard grants every permission. It is only ever produced by the
// super-admin tier and is a compile-time constant on purpose.
const PermissionWildcard Permission = "*"

const (
	// Dashboard
	PermissionDashboardView Permission = "dashboard.view"

	// Self service
	PermissionProfileViewOwn Permission = "profile.view_own"
	PermissionProfileEditOwn Permission = "profile.edit_own"
	PermissionMessagesView   Permission = "messages.view"

	// Users
	PermissionUsersView   Permission = "users.view"
	PermissionUsersCreate Permission = "users.create"
	PermissionUsersEdit   Permission = "users.edit"
	PermissionUsersDelete Permission = "users.delete"

	// Departments
	PermissionDepartmentsView   Permission = "departments.view"
	PermissionDepartmentsManage Permission = "departments.manage"

	// Leaves
	PermissionLeavesViewOwn  Permission = "leaves.view_own"
	PermissionLeavesRequest  Permission = "leaves.request"
	PermissionLeavesViewTeam Permission = "leaves.view_team"
	PermissionLeavesViewAll  Permission = "leaves.view_all"
	PermissionLeavesApprove  Permission = "leaves.approve"
	PermissionLeavesManage   Permission = "leaves.manage"

	// Expenses
	PermissionExpensesViewOwn Permission = "expenses.view_own"
	PermissionExpensesSubmit  Permission = "expenses.submit"
	PermissionExpensesApprove Permission = "expenses.approve"

	// Payroll
	PermissionPayrollViewOwn Permission = "payroll.view_own"
	PermissionPayrollView    Permission = "payroll.view"
	PermissionPayrollManage  Permission = "payroll.manage"

	// Recruitment
	PermissionRecruitmentView   Permission = "recruitment.view"
	PermissionRecruitmentManage Permission = "recruitment.manage"

	// Training
	PermissionTrainingViewOwn Permission = "training.view_own"
	PermissionTrainingView    Permission = "training.view"
	PermissionTrainingManage  Permission = "training.manage"

	// Reports
	PermissionReportsView Permission = "reports.view"

	// Administration
	PermissionRolesView       Permission = "roles.view"
	PermissionRolesManage     Permission = "roles.manage"
	PermissionPermissionsView Permission = "permissions.view"
	PermissionMenusManage     Permission = "menus.manage"
	PermissionSettingsManage  Permission = "settings.manage"
	PermissionAuditView       Permission = "audit.view"
)

// AllPermissions lists every concrete permission known to the code base.
// The wildcard is intentionally absent.
var AllPermissions = []Permission{
	PermissionDashboardView,
	PermissionProfileViewOwn,
	PermissionProfileEditOwn,
	PermissionMessagesView,
	PermissionUsersView,
	PermissionUsersCreate,
	PermissionUsersEdit,
	PermissionUsersDelete,
	PermissionDepartmentsView,
	PermissionDepartmentsManage,
	PermissionLeavesViewOwn,
	PermissionLeavesRequest,
	PermissionLeavesViewTeam,
	PermissionLeavesViewAll,
	PermissionLeavesApprove,
	PermissionLeavesManage,
	PermissionExpensesViewOwn,
	PermissionExpensesSubmit,
	PermissionExpensesApprove,
	PermissionPayrollViewOwn,
	PermissionPayrollView,
	PermissionPayrollManage,
	PermissionRecruitmentView,
	PermissionRecruitmentManage,
	PermissionTrainingViewOwn,
	PermissionTrainingView,
	PermissionTrainingManage,
	PermissionReportsView,
	PermissionRolesView,
	PermissionRolesManage,
	PermissionPermissionsView,
	PermissionMenusManage,
	PermissionSettingsManage,
	PermissionAuditView,
}

// PermissionRecord is a catalog row: a permission plus its display metadata.
type PermissionRecord struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	GroupName   string `json:"group_name,omitempty"`
	GroupIcon   string `json:"group_icon,omitempty"`
	SortOrder   int    `json:"sort_order"`
}

// PermissionGroup is a display group of catalog permissions.
type PermissionGroup struct {
	Name        string             `json:"name"`
	Icon        string             `json:"icon,omitempty"`
	SortOrder   int                `json:"sort_order"`
	Permissions []PermissionRecord `json:"permissions"`
}
