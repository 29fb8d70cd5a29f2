package rbac

import (
	"context"
	"log/slog"
)

// RoleStore is the persistence surface the engine decides against.
type RoleStore interface {
	GetActiveRole(ctx context.Context, userID string) (*RoleAssignment, error)
	ListRoles(ctx context.Context, userID string) ([]RoleAssignment, error)
	InsertAssignment(ctx context.Context, rec RoleAssignment) (RoleAssignment, error)
	Deactivate(ctx context.Context, userID string) error
	UpdatePermissions(ctx context.Context, userID string, permissions []string) (*RoleAssignment, error)
}

// Engine computes permission, resource and role-level decisions. Boolean
// operations fail closed: any store failure degrades to a deny, never an
// error surfaced to the caller. Mutating operations report outcomes as
// values so callers branch without error handling.
type Engine struct {
	store RoleStore
}

func NewEngine(store RoleStore) *Engine {
	return &Engine{store: store}
}

type AssignmentResult struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Role    *RoleAssignment `json:"role,omitempty"`
}

// ActiveRole returns the user's active assignment, nil when there is none or
// the store cannot prove one exists.
func (e *Engine) ActiveRole(ctx context.Context, userID string) *RoleAssignment {
	rec, err := e.store.GetActiveRole(ctx, userID)
	if err != nil {
		slog.Warn("active role lookup failed", "userId", userID, "err", err)
		return nil
	}
	return rec
}

// ListRoles returns the user's full assignment history, empty on any failure.
func (e *Engine) ListRoles(ctx context.Context, userID string) []RoleAssignment {
	recs, err := e.store.ListRoles(ctx, userID)
	if err != nil {
		slog.Warn("role history lookup failed", "userId", userID, "err", err)
		return nil
	}
	return recs
}

func (e *Engine) ValidatePermission(ctx context.Context, userID, permission string) bool {
	role := e.ActiveRole(ctx, userID)
	if role == nil {
		return false
	}
	perms := role.EffectivePermissions()
	if containsPermission(perms, PermissionWildcard) {
		return true
	}
	return containsPermission(perms, permission)
}

// ValidateResourceAccess checks both the resource-wide form
// "<resource>.<action>" and the scoped form "<resource>.<action>.<scope>".
// An empty scope defaults to "own".
func (e *Engine) ValidateResourceAccess(ctx context.Context, userID, resource, action, scope string) bool {
	if scope == "" {
		scope = "own"
	}
	role := e.ActiveRole(ctx, userID)
	if role == nil {
		return false
	}
	perms := role.EffectivePermissions()
	if containsPermission(perms, PermissionWildcard) {
		return true
	}
	return containsPermission(perms, resource+"."+action) ||
		containsPermission(perms, resource+"."+action+"."+scope)
}

// CanAssignRole decides whether assigner may hand out targetRole. Assigning
// the top role is always permitted; that is the bootstrap escape hatch used
// by system initialization. Otherwise the assigner needs roles.assign (or
// the wildcard) and a strictly higher level than the target role.
func (e *Engine) CanAssignRole(ctx context.Context, assignerID, targetRole string) bool {
	if targetRole == TopRole {
		return true
	}
	role := e.ActiveRole(ctx, assignerID)
	if role == nil {
		return false
	}
	perms := role.EffectivePermissions()
	if containsPermission(perms, PermissionWildcard) {
		return true
	}
	if !containsPermission(perms, PermRolesAssign) {
		return false
	}
	return LevelOf(role.RoleName) > LevelOf(targetRole)
}

// AssignRole deactivates the user's current assignment and inserts a new
// active row snapshotting the catalog's current permission set.
func (e *Engine) AssignRole(ctx context.Context, userID, roleName, assignedBy string) AssignmentResult {
	if _, ok := Definition(roleName); !ok {
		return AssignmentResult{Message: "unknown role: " + roleName}
	}
	if !e.CanAssignRole(ctx, assignedBy, roleName) {
		return AssignmentResult{Message: "insufficient authority to assign role " + roleName}
	}
	if err := e.store.Deactivate(ctx, userID); err != nil {
		slog.Warn("role deactivation failed", "userId", userID, "err", err)
		return AssignmentResult{Message: "role assignment failed"}
	}
	rec, err := e.store.InsertAssignment(ctx, RoleAssignment{
		UserID:      userID,
		RoleName:    roleName,
		Permissions: PermissionsOf(roleName),
		AssignedBy:  assignedBy,
		IsActive:    true,
	})
	if err != nil {
		slog.Warn("role assignment insert failed", "userId", userID, "err", err)
		return AssignmentResult{Message: "role assignment failed"}
	}
	return AssignmentResult{Success: true, Message: "role assigned", Role: &rec}
}

// AssignDefaultRole gives a fresh user the employee role. Idempotent: an
// existing active assignment is returned unchanged. This is a self-service
// default, not an elevation, so CanAssignRole is bypassed.
func (e *Engine) AssignDefaultRole(ctx context.Context, userID string) AssignmentResult {
	existing, err := e.store.GetActiveRole(ctx, userID)
	if err != nil {
		slog.Warn("default role lookup failed", "userId", userID, "err", err)
		return AssignmentResult{Message: "role assignment failed"}
	}
	if existing != nil {
		return AssignmentResult{Success: true, Message: "user already has an active role", Role: existing}
	}
	rec, err := e.store.InsertAssignment(ctx, RoleAssignment{
		UserID:      userID,
		RoleName:    RoleEmployee,
		Permissions: PermissionsOf(RoleEmployee),
		AssignedBy:  userID,
		IsActive:    true,
	})
	if err != nil {
		slog.Warn("default role insert failed", "userId", userID, "err", err)
		return AssignmentResult{Message: "role assignment failed"}
	}
	return AssignmentResult{Success: true, Message: "default role assigned", Role: &rec}
}

// DeactivateRole removes the user's active assignment. Requires roles.manage.
func (e *Engine) DeactivateRole(ctx context.Context, userID, deactivatedBy string) AssignmentResult {
	if !e.ValidatePermission(ctx, deactivatedBy, PermRolesManage) {
		return AssignmentResult{Message: "missing " + PermRolesManage + " permission"}
	}
	if err := e.store.Deactivate(ctx, userID); err != nil {
		slog.Warn("role deactivation failed", "userId", userID, "err", err)
		return AssignmentResult{Message: "role deactivation failed"}
	}
	return AssignmentResult{Success: true, Message: "role deactivated"}
}

// UpdateUserPermissions overwrites the permission snapshot on the active
// assignment in place; history rows are untouched. Requires roles.manage.
func (e *Engine) UpdateUserPermissions(ctx context.Context, userID string, permissions []string, updatedBy string) AssignmentResult {
	if !e.ValidatePermission(ctx, updatedBy, PermRolesManage) {
		return AssignmentResult{Message: "missing " + PermRolesManage + " permission"}
	}
	rec, err := e.store.UpdatePermissions(ctx, userID, permissions)
	if err != nil {
		slog.Warn("permission update failed", "userId", userID, "err", err)
		return AssignmentResult{Message: "permission update failed"}
	}
	if rec == nil {
		return AssignmentResult{Message: "user has no active role"}
	}
	return AssignmentResult{Success: true, Message: "permissions updated", Role: rec}
}
