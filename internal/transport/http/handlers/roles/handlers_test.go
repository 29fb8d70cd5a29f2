package roleshandler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"peopleops/internal/domain/auth"
	"peopleops/internal/domain/rbac"
	"peopleops/internal/transport/http/middleware"
)

type memoryStore struct {
	assignments []rbac.RoleAssignment
}

func (m *memoryStore) GetActiveRole(_ context.Context, userID string) (*rbac.RoleAssignment, error) {
	for i := range m.assignments {
		if m.assignments[i].UserID == userID && m.assignments[i].IsActive {
			rec := m.assignments[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) ListRoles(_ context.Context, userID string) ([]rbac.RoleAssignment, error) {
	var out []rbac.RoleAssignment
	for _, rec := range m.assignments {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryStore) InsertAssignment(_ context.Context, rec rbac.RoleAssignment) (rbac.RoleAssignment, error) {
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("assignment-%d", len(m.assignments)+1)
	}
	if rec.AssignedAt.IsZero() {
		rec.AssignedAt = time.Now().UTC()
	}
	m.assignments = append(m.assignments, rec)
	return rec, nil
}

func (m *memoryStore) Deactivate(_ context.Context, userID string) error {
	for i := range m.assignments {
		if m.assignments[i].UserID == userID {
			m.assignments[i].IsActive = false
		}
	}
	return nil
}

func (m *memoryStore) UpdatePermissions(_ context.Context, userID string, permissions []string) (*rbac.RoleAssignment, error) {
	for i := range m.assignments {
		if m.assignments[i].UserID == userID && m.assignments[i].IsActive {
			m.assignments[i].Permissions = permissions
			rec := m.assignments[i]
			return &rec, nil
		}
	}
	return nil, nil
}

type memoryUsers struct {
	ids map[string]bool
}

func (m *memoryUsers) UserExists(_ context.Context, userID string) (bool, error) {
	return m.ids[userID], nil
}

// newTestRouter wires the handler over the given assignments; every user id
// seen in an assignment counts as a known account, plus any extra ids given.
func newTestRouter(store *memoryStore, extraUsers ...string) chi.Router {
	users := &memoryUsers{ids: make(map[string]bool)}
	for _, rec := range store.assignments {
		users.ids[rec.UserID] = true
	}
	for _, id := range extraUsers {
		users.ids[id] = true
	}
	router := chi.NewRouter()
	NewHandler(rbac.NewEngine(store), users).RegisterRoutes(router)
	return router
}

func asUser(r *http.Request, userID, roleName string) *http.Request {
	ctx := middleware.WithUser(r.Context(), auth.UserContext{
		UserID:   userID,
		Email:    userID + "@example.com",
		RoleName: roleName,
	})
	return r.WithContext(ctx)
}

func activeAssignment(userID, roleName string) rbac.RoleAssignment {
	return rbac.RoleAssignment{
		ID:         "seed-" + userID,
		UserID:     userID,
		RoleName:   roleName,
		AssignedAt: time.Now().UTC(),
		IsActive:   true,
	}
}

func TestCatalogRequiresRolesRead(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("admin-1", rbac.RoleHRAdmin),
		activeAssignment("emp-1", rbac.RoleEmployee),
	}}
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/roles", nil), "admin-1", rbac.RoleHRAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin catalog read: got %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/roles", nil), "emp-1", rbac.RoleEmployee))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("employee catalog read: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestMyRole(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("emp-1", rbac.RoleEmployee),
	}}
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/roles/me", nil), "emp-1", rbac.RoleEmployee))
	if rec.Code != http.StatusOK {
		t.Fatalf("own role read: got %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), rbac.RoleEmployee) {
		t.Fatalf("own role read body missing role name: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/roles/me", nil), "ghost", ""))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no active role: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHistoryAllowsSelfAndReaders(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("emp-1", rbac.RoleEmployee),
		activeAssignment("emp-2", rbac.RoleEmployee),
		activeAssignment("admin-1", rbac.RoleHRAdmin),
	}}
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/users/emp-1/roles", nil), "emp-1", rbac.RoleEmployee))
	if rec.Code != http.StatusOK {
		t.Fatalf("own history: got %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/users/emp-1/roles", nil), "emp-2", rbac.RoleEmployee))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("peer history: got %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/users/emp-1/roles", nil), "admin-1", rbac.RoleHRAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin history: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func assignBody(roleName string) *strings.Reader {
	return strings.NewReader(fmt.Sprintf(`{"roleName":%q}`, roleName))
}

func TestAssignRoleThroughEngine(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("admin-1", rbac.RoleHRAdmin),
		activeAssignment("emp-1", rbac.RoleEmployee),
	}}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/users/emp-1/roles", assignBody(rbac.RoleManager))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req, "admin-1", rbac.RoleHRAdmin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin assigns manager: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	active, err := store.GetActiveRole(context.Background(), "emp-1")
	if err != nil || active == nil {
		t.Fatalf("expected an active assignment after promotion, got %v, %v", active, err)
	}
	if active.RoleName != rbac.RoleManager {
		t.Fatalf("active role after promotion = %s, want %s", active.RoleName, rbac.RoleManager)
	}
}

func TestAssignRoleDeniedLaterally(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("admin-1", rbac.RoleHRAdmin),
		activeAssignment("admin-2", rbac.RoleHRAdmin),
	}}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/users/admin-2/roles", assignBody(rbac.RoleHRAdmin))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req, "admin-1", rbac.RoleHRAdmin))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("lateral assignment: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAssignUnknownRole(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("admin-1", rbac.RoleHRAdmin),
	}}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/users/emp-1/roles", assignBody("astronaut"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req, "admin-1", rbac.RoleHRAdmin))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown role: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAssignToUnknownUser(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("admin-1", rbac.RoleHRAdmin),
	}}
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/users/nobody/roles", assignBody(rbac.RoleEmployee))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req, "admin-1", rbac.RoleHRAdmin))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("assign to unknown user: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDeactivateGateUsesPersistedRole(t *testing.T) {
	// Token still claims admin but the persisted active role is employee:
	// the minimum-role gate on the route must reject before the engine runs.
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("demoted-1", rbac.RoleEmployee),
		activeAssignment("emp-1", rbac.RoleEmployee),
	}}
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/users/emp-1/roles", nil), "demoted-1", rbac.RoleHRAdmin))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stale admin claim: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	if !strings.Contains(rec.Body.String(), "below required") {
		t.Fatalf("expected the role gate to deny, got body %s", rec.Body.String())
	}
}

func TestDeactivateRequiresManage(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("admin-1", rbac.RoleHRAdmin),
		activeAssignment("mgr-1", rbac.RoleManager),
		activeAssignment("emp-1", rbac.RoleEmployee),
	}}
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/users/emp-1/roles", nil), "mgr-1", rbac.RoleManager))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager deactivate: got %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/users/emp-1/roles", nil), "admin-1", rbac.RoleHRAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin deactivate: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	active, _ := store.GetActiveRole(context.Background(), "emp-1")
	if active != nil {
		t.Fatalf("expected no active assignment after deactivation, got %+v", active)
	}
}

func TestUpdatePermissionsRequiresManage(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("admin-1", rbac.RoleHRAdmin),
		activeAssignment("emp-1", rbac.RoleEmployee),
	}}
	router := newTestRouter(store)

	body := strings.NewReader(`{"permissions":["profile.read","reports.read"]}`)
	req := httptest.NewRequest(http.MethodPut, "/users/emp-1/permissions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req, "admin-1", rbac.RoleHRAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin permission override: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var envelope struct {
		Data rbac.RoleAssignment `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Permissions) != 2 {
		t.Fatalf("snapshot after override = %v, want 2 entries", envelope.Data.Permissions)
	}
}

func TestHistoryExportRendersPDF(t *testing.T) {
	store := &memoryStore{assignments: []rbac.RoleAssignment{
		activeAssignment("emp-1", rbac.RoleEmployee),
	}}
	router := newTestRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/users/emp-1/roles/export", nil), "emp-1", rbac.RoleEmployee))
	if rec.Code != http.StatusOK {
		t.Fatalf("history export: got %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q, want application/pdf", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("export body does not look like a PDF")
	}
}
