package rbac

import "time"

// RoleAssignment is one row of the append-only assignment history. Rows are
// never updated in place except for the is_active flag and permission
// snapshot overrides; a user has at most one active row at a time.
type RoleAssignment struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	RoleName    string    `json:"roleName"`
	Permissions []string  `json:"permissions"`
	AssignedBy  string    `json:"assignedBy,omitempty"`
	AssignedAt  time.Time `json:"assignedAt"`
	IsActive    bool      `json:"isActive"`
}

// EffectivePermissions resolves the assignment's permission set. An empty
// snapshot falls back to the catalog's current set for the role, so roles can
// gain permissions retroactively; a non-empty snapshot is a per-user override.
func (a *RoleAssignment) EffectivePermissions() []string {
	if a == nil {
		return nil
	}
	if len(a.Permissions) > 0 {
		out := make([]string, len(a.Permissions))
		copy(out, a.Permissions)
		return out
	}
	return PermissionsOf(a.RoleName)
}

func containsPermission(perms []string, candidate string) bool {
	for _, p := range perms {
		if p == candidate {
			return true
		}
	}
	return false
}
