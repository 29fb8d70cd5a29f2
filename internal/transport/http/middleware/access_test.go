package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"peopleops/internal/domain/auth"
	"peopleops/internal/domain/rbac"
)

type fakeAuthorizer struct {
	permissions map[string][]string // userID -> held permissions
	activeRoles map[string]string   // userID -> role name
	panics      bool
}

func (f *fakeAuthorizer) ValidatePermission(_ context.Context, userID, permission string) bool {
	if f.panics {
		panic("store unreachable")
	}
	for _, p := range f.permissions[userID] {
		if p == permission || p == rbac.PermissionWildcard {
			return true
		}
	}
	return false
}

func (f *fakeAuthorizer) ValidateResourceAccess(ctx context.Context, userID, resource, action, scope string) bool {
	if scope == "" {
		scope = "own"
	}
	return f.ValidatePermission(ctx, userID, resource+"."+action) ||
		f.ValidatePermission(ctx, userID, resource+"."+action+"."+scope)
}

func (f *fakeAuthorizer) ActiveRole(_ context.Context, userID string) *rbac.RoleAssignment {
	if f.panics {
		panic("store unreachable")
	}
	roleName, ok := f.activeRoles[userID]
	if !ok {
		return nil
	}
	return &rbac.RoleAssignment{UserID: userID, RoleName: roleName, IsActive: true}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(t *testing.T, method, target string, user *auth.UserContext, body string) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req = req.WithContext(WithUser(req.Context(), *user))
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequirePermission(t *testing.T) {
	engine := &fakeAuthorizer{permissions: map[string][]string{
		"u1": {rbac.PermProfileRead},
	}}
	handler := RequirePermission(engine, rbac.PermProfileRead)(okHandler())

	if rec := serve(handler, requestAs(t, http.MethodGet, "/profile", &auth.UserContext{UserID: "u1"}, "")); rec.Code != http.StatusOK {
		t.Fatalf("expected allow, got %d", rec.Code)
	}
	if rec := serve(handler, requestAs(t, http.MethodGet, "/profile", &auth.UserContext{UserID: "u2"}, "")); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := serve(handler, requestAs(t, http.MethodGet, "/profile", nil, "")); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without principal, got %d", rec.Code)
	}
}

func TestSuperAdminClaimFastPath(t *testing.T) {
	// The engine would deny; the token-carried top role short-circuits first.
	engine := &fakeAuthorizer{permissions: map[string][]string{}}
	handler := RequirePermission(engine, rbac.PermRolesManage)(okHandler())

	req := requestAs(t, http.MethodGet, "/roles", &auth.UserContext{UserID: "root", RoleName: rbac.RoleSuperAdmin}, "")
	if rec := serve(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("expected super-admin claim bypass, got %d", rec.Code)
	}
}

func TestRequireAnyPermission(t *testing.T) {
	engine := &fakeAuthorizer{permissions: map[string][]string{
		"u1": {rbac.PermTimeReadTeam},
	}}
	handler := RequireAnyPermission(engine, rbac.PermTimeRead, rbac.PermTimeReadTeam)(okHandler())

	if rec := serve(handler, requestAs(t, http.MethodGet, "/time", &auth.UserContext{UserID: "u1"}, "")); rec.Code != http.StatusOK {
		t.Fatalf("expected allow on second permission, got %d", rec.Code)
	}
	if rec := serve(handler, requestAs(t, http.MethodGet, "/time", &auth.UserContext{UserID: "u2"}, "")); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireAllPermissionsNamesFirstMissing(t *testing.T) {
	engine := &fakeAuthorizer{permissions: map[string][]string{
		"u1": {rbac.PermTasksCreate},
	}}
	handler := RequireAllPermissions(engine, rbac.PermTasksCreate, rbac.PermTasksAssign)(okHandler())

	rec := serve(handler, requestAs(t, http.MethodPost, "/tasks", &auth.UserContext{UserID: "u1"}, ""))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), rbac.PermTasksAssign) {
		t.Fatalf("denial should name the missing permission: %s", rec.Body.String())
	}
}

func TestRequireResourcePermissionSelfBypass(t *testing.T) {
	engine := &fakeAuthorizer{permissions: map[string][]string{}}
	router := chi.NewRouter()
	router.With(RequireResourcePermission(engine, ResourceGuard{
		Resource:  "roles",
		Actions:   []string{"read"},
		AllowSelf: true,
	})).Get("/users/{userId}/roles", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Path userId equals the caller: allowed even though the engine denies.
	req := requestAs(t, http.MethodGet, "/users/u1/roles", &auth.UserContext{UserID: "u1"}, "")
	if rec := serve(router, req); rec.Code != http.StatusOK {
		t.Fatalf("expected self bypass, got %d", rec.Code)
	}

	// Another user's id: engine decides, and it denies.
	req = requestAs(t, http.MethodGet, "/users/u2/roles", &auth.UserContext{UserID: "u1"}, "")
	if rec := serve(router, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign target, got %d", rec.Code)
	}
}

func TestRequireResourcePermissionSelfViaPathID(t *testing.T) {
	engine := &fakeAuthorizer{permissions: map[string][]string{}}
	router := chi.NewRouter()
	router.With(RequireResourcePermission(engine, ResourceGuard{
		Resource:  "employees",
		Actions:   []string{"read"},
		AllowSelf: true,
	})).Get("/employees/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := requestAs(t, http.MethodGet, "/employees/u1", &auth.UserContext{UserID: "u1"}, "")
	if rec := serve(router, req); rec.Code != http.StatusOK {
		t.Fatalf("expected self bypass via path id, got %d", rec.Code)
	}
}

func TestRequireResourcePermissionSelfViaQuery(t *testing.T) {
	engine := &fakeAuthorizer{permissions: map[string][]string{}}
	handler := RequireResourcePermission(engine, ResourceGuard{
		Resource:  "time",
		Actions:   []string{"read"},
		AllowSelf: true,
	})(okHandler())

	req := requestAs(t, http.MethodGet, "/time/entries?userId=u1", &auth.UserContext{UserID: "u1"}, "")
	if rec := serve(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("expected self bypass via query, got %d", rec.Code)
	}
}

func TestRequireResourcePermissionDefaultsToSelf(t *testing.T) {
	// An employee holding only the .own grant reads without naming a target.
	// The handler will default the subject to the caller, so the guard must
	// treat the absent target as self rather than asking for the team scope.
	engine := &fakeAuthorizer{permissions: map[string][]string{
		"u1": {rbac.PermTimeReadOwn},
	}}
	handler := RequireResourcePermission(engine, ResourceGuard{
		Resource:  "time",
		Actions:   []string{"read"},
		Scope:     "team",
		AllowSelf: true,
	})(okHandler())

	req := requestAs(t, http.MethodGet, "/time/entries", &auth.UserContext{UserID: "u1"}, "")
	if rec := serve(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("expected targetless read to pass as self, got %d", rec.Code)
	}

	// Naming someone else still goes through the engine and denies.
	req = requestAs(t, http.MethodGet, "/time/entries?userId=u2", &auth.UserContext{UserID: "u1"}, "")
	if rec := serve(handler, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign target, got %d", rec.Code)
	}
}

func TestRequireResourcePermissionSelfViaBody(t *testing.T) {
	engine := &fakeAuthorizer{permissions: map[string][]string{}}
	handler := RequireResourcePermission(engine, ResourceGuard{
		Resource:  "time",
		Actions:   []string{"log"},
		AllowSelf: true,
	})(okHandler())

	req := requestAs(t, http.MethodPost, "/time/clock-in", &auth.UserContext{UserID: "u1"}, `{"userId":"u1"}`)
	if rec := serve(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("expected self bypass via body, got %d", rec.Code)
	}
}

func TestRequireResourcePermissionUnscopedGrant(t *testing.T) {
	engine := &fakeAuthorizer{permissions: map[string][]string{
		"staff": {"employees.read"},
	}}
	handler := RequireResourcePermission(engine, ResourceGuard{
		Resource: "employees",
		Actions:  []string{"read"},
		Scope:    "team",
	})(okHandler())

	req := requestAs(t, http.MethodGet, "/employees", &auth.UserContext{UserID: "staff"}, "")
	if rec := serve(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("unscoped grant should cover any requested scope, got %d", rec.Code)
	}
}

func TestRequireResourcePermissionRequireAll(t *testing.T) {
	engine := &fakeAuthorizer{permissions: map[string][]string{
		"u1": {"tasks.create"},
		"u2": {"tasks.create", "tasks.assign"},
	}}
	handler := RequireResourcePermission(engine, ResourceGuard{
		Resource:   "tasks",
		Actions:    []string{"create", "assign"},
		RequireAll: true,
	})(okHandler())

	if rec := serve(handler, requestAs(t, http.MethodPost, "/tasks", &auth.UserContext{UserID: "u2"}, "")); rec.Code != http.StatusOK {
		t.Fatalf("expected allow when all actions held, got %d", rec.Code)
	}
	if rec := serve(handler, requestAs(t, http.MethodPost, "/tasks", &auth.UserContext{UserID: "u1"}, "")); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when one action missing, got %d", rec.Code)
	}
}

func TestRequireMinimumRolePersistedRoleWins(t *testing.T) {
	// Token claims manager, store says employee: persisted row is authoritative.
	engine := &fakeAuthorizer{activeRoles: map[string]string{"u1": rbac.RoleEmployee}}
	handler := RequireMinimumRole(engine, rbac.RoleManager)(okHandler())

	req := requestAs(t, http.MethodGet, "/reports", &auth.UserContext{UserID: "u1", RoleName: rbac.RoleManager}, "")
	if rec := serve(handler, req); rec.Code != http.StatusForbidden {
		t.Fatalf("persisted employee role should lose to manager minimum, got %d", rec.Code)
	}
}

func TestRequireMinimumRoleTokenFallback(t *testing.T) {
	engine := &fakeAuthorizer{activeRoles: map[string]string{}}
	handler := RequireMinimumRole(engine, rbac.RoleManager)(okHandler())

	req := requestAs(t, http.MethodGet, "/reports", &auth.UserContext{UserID: "u1", RoleName: rbac.RoleHRAdmin}, "")
	if rec := serve(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("token role should apply when no persisted role exists, got %d", rec.Code)
	}

	req = requestAs(t, http.MethodGet, "/reports", &auth.UserContext{UserID: "u2"}, "")
	if rec := serve(handler, req); rec.Code != http.StatusForbidden {
		t.Fatalf("no resolvable role must deny, got %d", rec.Code)
	}
}

func TestGuardFailsClosedOnPanic(t *testing.T) {
	engine := &fakeAuthorizer{panics: true}
	handler := RequirePermission(engine, rbac.PermProfileRead)(okHandler())

	req := requestAs(t, http.MethodGet, "/profile", &auth.UserContext{UserID: "u1"}, "")
	rec := serve(handler, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("engine panic must convert to denial, got %d", rec.Code)
	}
}
