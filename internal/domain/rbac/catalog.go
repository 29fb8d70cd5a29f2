package rbac

const (
	RoleEmployee   = "employee"
	RoleHRStaff    = "hr-staff"
	RoleManager    = "manager"
	RoleHRAdmin    = "hr-admin"
	RoleSuperAdmin = "super-admin"
)

// TopRole is the highest-authority role; the only holder of the wildcard.
const TopRole = RoleSuperAdmin

const PermissionWildcard = "*"

const (
	PermProfileRead     = "profile.read"
	PermProfileUpdate   = "profile.update"
	PermTimeLog         = "time.log"
	PermTimeRead        = "time.read"
	PermTimeReadOwn     = "time.read.own"
	PermTimeReadTeam    = "time.read.team"
	PermTimeApprove     = "time.approve"
	PermTimeApproveTeam = "time.approve.team"
	PermEmployeesCreate = "employees.create"
	PermEmployeesRead   = "employees.read"
	PermEmployeesTeam   = "employees.read.team"
	PermEmployeesUpdate = "employees.update"
	PermEmployeesDelete = "employees.delete"
	PermTasksCreate     = "tasks.create"
	PermTasksAssign     = "tasks.assign"
	PermTasksRead       = "tasks.read"
	PermTasksReadOwn    = "tasks.read.own"
	PermTasksReadTeam   = "tasks.read.team"
	PermTasksUpdate     = "tasks.update"
	PermTasksUpdateOwn  = "tasks.update.own"
	PermTasksUpdateTeam = "tasks.update.team"
	PermTasksDelete     = "tasks.delete"
	PermReportsRead     = "reports.read"
	PermReportsReadTeam = "reports.read.team"
	PermRolesRead       = "roles.read"
	PermRolesAssign     = "roles.assign"
	PermRolesManage     = "roles.manage"
)

type RoleDefinition struct {
	Name        string   `json:"name"`
	Level       int      `json:"level"`
	Permissions []string `json:"permissions"`
	Description string   `json:"description"`
}

// Authority is purely numeric: "can A assign B" is an integer comparison,
// so new roles slot into the hierarchy without touching assignment logic.
var roleCatalog = map[string]RoleDefinition{
	RoleEmployee: {
		Name:  RoleEmployee,
		Level: 1,
		Permissions: []string{
			PermProfileRead,
			PermProfileUpdate,
			PermTimeLog,
			PermTimeReadOwn,
			PermTasksReadOwn,
			PermTasksUpdateOwn,
		},
		Description: "Regular employee with self-service access",
	},
	RoleHRStaff: {
		Name:  RoleHRStaff,
		Level: 2,
		Permissions: []string{
			PermProfileRead,
			PermProfileUpdate,
			PermTimeLog,
			PermTimeReadOwn,
			PermTasksReadOwn,
			PermTasksUpdateOwn,
			PermEmployeesRead,
			PermEmployeesUpdate,
			PermTimeRead,
			PermReportsRead,
		},
		Description: "HR staff handling day-to-day employee records",
	},
	RoleManager: {
		Name:  RoleManager,
		Level: 3,
		Permissions: []string{
			PermProfileRead,
			PermProfileUpdate,
			PermTimeLog,
			PermTimeReadOwn,
			PermTasksReadOwn,
			PermTasksUpdateOwn,
			PermEmployeesTeam,
			PermTimeReadTeam,
			PermTimeApproveTeam,
			PermTasksCreate,
			PermTasksAssign,
			PermTasksReadTeam,
			PermTasksUpdateTeam,
			PermReportsReadTeam,
		},
		Description: "Team manager with team-scoped oversight",
	},
	RoleHRAdmin: {
		Name:  RoleHRAdmin,
		Level: 4,
		Permissions: []string{
			PermProfileRead,
			PermProfileUpdate,
			PermEmployeesCreate,
			PermEmployeesRead,
			PermEmployeesUpdate,
			PermEmployeesDelete,
			PermTimeLog,
			PermTimeRead,
			PermTimeApprove,
			PermTasksCreate,
			PermTasksAssign,
			PermTasksRead,
			PermTasksUpdate,
			PermTasksDelete,
			PermReportsRead,
			PermRolesRead,
			PermRolesAssign,
			PermRolesManage,
		},
		Description: "HR administrator with organization-wide access",
	},
	RoleSuperAdmin: {
		Name:        RoleSuperAdmin,
		Level:       5,
		Permissions: []string{PermissionWildcard},
		Description: "System owner with unconditional access",
	},
}

var roleNamesByLevel = []string{
	RoleEmployee,
	RoleHRStaff,
	RoleManager,
	RoleHRAdmin,
	RoleSuperAdmin,
}

// Definition returns the catalog entry for a role name.
func Definition(roleName string) (RoleDefinition, bool) {
	def, ok := roleCatalog[roleName]
	return def, ok
}

// LevelOf returns 0 for unknown role names, meaning no authority.
func LevelOf(roleName string) int {
	return roleCatalog[roleName].Level
}

// PermissionsOf returns the catalog's current permission set for a role,
// empty for unknown roles. The returned slice is a copy.
func PermissionsOf(roleName string) []string {
	def, ok := roleCatalog[roleName]
	if !ok {
		return nil
	}
	out := make([]string, len(def.Permissions))
	copy(out, def.Permissions)
	return out
}

// AllRoleNames enumerates role names in ascending level order.
func AllRoleNames() []string {
	out := make([]string, len(roleNamesByLevel))
	copy(out, roleNamesByLevel)
	return out
}

// Catalog returns all role definitions in ascending level order.
func Catalog() []RoleDefinition {
	out := make([]RoleDefinition, 0, len(roleNamesByLevel))
	for _, name := range roleNamesByLevel {
		def := roleCatalog[name]
		def.Permissions = PermissionsOf(name)
		out = append(out, def)
	}
	return out
}
