package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"peopleops/internal/domain/rbac"
	"peopleops/internal/transport/http/api"
)

// Authorizer is the slice of the rbac engine the guards need.
type Authorizer interface {
	ValidatePermission(ctx context.Context, userID, permission string) bool
	ValidateResourceAccess(ctx context.Context, userID, resource, action, scope string) bool
	ActiveRole(ctx context.Context, userID string) *rbac.RoleAssignment
}

// RequirePermission allows the request when the principal holds the exact
// permission (or the wildcard, resolved inside the engine).
func RequirePermission(engine Authorizer, permission string) func(http.Handler) http.Handler {
	return guard(func(w http.ResponseWriter, r *http.Request, next http.Handler) {
		user, ok := requirePrincipal(w, r)
		if !ok {
			return
		}
		if user.RoleName == rbac.TopRole {
			next.ServeHTTP(w, r)
			return
		}
		if !engine.ValidatePermission(r.Context(), user.UserID, permission) {
			deny(w, r, "missing permission "+permission)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAnyPermission short-circuits allow on the first held permission,
// checked in the given order.
func RequireAnyPermission(engine Authorizer, permissions ...string) func(http.Handler) http.Handler {
	return guard(func(w http.ResponseWriter, r *http.Request, next http.Handler) {
		user, ok := requirePrincipal(w, r)
		if !ok {
			return
		}
		if user.RoleName == rbac.TopRole {
			next.ServeHTTP(w, r)
			return
		}
		for _, permission := range permissions {
			if engine.ValidatePermission(r.Context(), user.UserID, permission) {
				next.ServeHTTP(w, r)
				return
			}
		}
		deny(w, r, "none of the required permissions held")
	})
}

// RequireAllPermissions short-circuits deny on the first missing permission
// and names it in the denial reason.
func RequireAllPermissions(engine Authorizer, permissions ...string) func(http.Handler) http.Handler {
	return guard(func(w http.ResponseWriter, r *http.Request, next http.Handler) {
		user, ok := requirePrincipal(w, r)
		if !ok {
			return
		}
		if user.RoleName == rbac.TopRole {
			next.ServeHTTP(w, r)
			return
		}
		for _, permission := range permissions {
			if !engine.ValidatePermission(r.Context(), user.UserID, permission) {
				deny(w, r, "missing permission "+permission)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ResourceGuard configures RequireResourcePermission. Scope defaults to
// "own". With RequireAll every action must pass; otherwise one suffices.
type ResourceGuard struct {
	Resource   string
	Actions    []string
	Scope      string
	AllowSelf  bool
	RequireAll bool
}

// RequireResourcePermission checks "<resource>.<action>" and its scoped form
// through the engine. With AllowSelf, a request targeting the principal's own
// user id bypasses the permission check entirely. A request naming no target
// at all falls to the caller themselves, so it bypasses the same way.
func RequireResourcePermission(engine Authorizer, g ResourceGuard) func(http.Handler) http.Handler {
	return guard(func(w http.ResponseWriter, r *http.Request, next http.Handler) {
		user, ok := requirePrincipal(w, r)
		if !ok {
			return
		}
		if user.RoleName == rbac.TopRole {
			next.ServeHTTP(w, r)
			return
		}
		if g.AllowSelf {
			if target := targetSubject(r); target == "" || target == user.UserID {
				next.ServeHTTP(w, r)
				return
			}
		}
		allowed := g.RequireAll
		for _, action := range g.Actions {
			pass := engine.ValidateResourceAccess(r.Context(), user.UserID, g.Resource, action, g.Scope)
			if g.RequireAll {
				allowed = allowed && pass
				if !pass {
					break
				}
			} else if pass {
				allowed = true
				break
			}
		}
		if !allowed {
			deny(w, r, "insufficient access to "+g.Resource)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireMinimumRole resolves the principal's persisted active role as
// authoritative, falling back to the token-carried role name only when no
// persisted role exists.
func RequireMinimumRole(engine Authorizer, minimumRole string) func(http.Handler) http.Handler {
	return guard(func(w http.ResponseWriter, r *http.Request, next http.Handler) {
		user, ok := requirePrincipal(w, r)
		if !ok {
			return
		}
		if user.RoleName == rbac.TopRole {
			next.ServeHTTP(w, r)
			return
		}
		roleName := user.RoleName
		if active := engine.ActiveRole(r.Context(), user.UserID); active != nil {
			roleName = active.RoleName
		}
		if roleName == "" {
			deny(w, r, "no resolvable role")
			return
		}
		if roleName == rbac.TopRole {
			next.ServeHTTP(w, r)
			return
		}
		minLevel := rbac.LevelOf(minimumRole)
		if minLevel == 0 || rbac.LevelOf(roleName) < minLevel {
			deny(w, r, "role "+roleName+" below required "+minimumRole)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// targetSubject resolves the request's target user id, checking locations in
// fixed precedence: path userId, path id, body userId, query userId.
func targetSubject(r *http.Request) string {
	if id := chi.URLParam(r, "userId"); id != "" {
		return id
	}
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	if id := extractJSONField(r, "userId"); id != "" {
		return id
	}
	return r.URL.Query().Get("userId")
}

// guard wraps a check so that a panic while consulting the engine converts
// to a denial instead of a server error. Authorization never fails open.
func guard(check func(w http.ResponseWriter, r *http.Request, next http.Handler)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("access guard panic", "path", r.URL.Path, "panic", rec)
					deny(w, r, "access check failed")
				}
			}()
			check(w, r, next)
		})
	}
}

func requirePrincipal(w http.ResponseWriter, r *http.Request) (user principal, ok bool) {
	u, found := GetUser(r.Context())
	if !found || u.UserID == "" {
		failAuth(w, r)
		return principal{}, false
	}
	return principal{UserID: u.UserID, RoleName: u.RoleName}, true
}

type principal struct {
	UserID   string
	RoleName string
}

func failAuth(w http.ResponseWriter, r *http.Request) {
	api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
}

func deny(w http.ResponseWriter, r *http.Request, reason string) {
	api.Fail(w, http.StatusForbidden, "forbidden", reason, GetRequestID(r.Context()))
}
