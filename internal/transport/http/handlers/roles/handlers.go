package roleshandler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"

	"peopleops/internal/domain/rbac"
	"peopleops/internal/platform/requestctx"
	"peopleops/internal/transport/http/api"
	"peopleops/internal/transport/http/middleware"
)

// UserDirectory confirms a target user exists before roles are granted to it.
// The auth store satisfies it.
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

type Handler struct {
	Engine *rbac.Engine
	Users  UserDirectory
}

func NewHandler(engine *rbac.Engine, users UserDirectory) *Handler {
	return &Handler{Engine: engine, Users: users}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/roles", func(r chi.Router) {
		r.With(middleware.RequirePermission(h.Engine, rbac.PermRolesRead)).Get("/", h.HandleCatalog)
		r.Get("/me", h.HandleMyRole)
	})

	r.Route("/users/{userId}", func(r chi.Router) {
		historyGuard := middleware.RequireResourcePermission(h.Engine, middleware.ResourceGuard{
			Resource:  "roles",
			Actions:   []string{"read"},
			AllowSelf: true,
		})
		r.With(historyGuard).Get("/roles", h.HandleHistory)
		r.With(historyGuard).Get("/roles/export", h.HandleHistoryExport)

		// Assignment authorization lives inside the engine; a route guard
		// here would break the top-role bootstrap path.
		r.Post("/roles", h.HandleAssign)

		// Deactivation and snapshot overrides need roles.manage, which only
		// admin-level roles carry; the persisted-role gate rejects stale
		// admin token claims before the engine re-checks the permission.
		adminGate := middleware.RequireMinimumRole(h.Engine, rbac.RoleHRAdmin)
		r.With(adminGate).Delete("/roles", h.HandleDeactivate)
		r.With(adminGate).Put("/permissions", h.HandleUpdatePermissions)
	})
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	api.Success(w, rbac.Catalog(), requestctx.GetRequestID(r.Context()))
}

func (h *Handler) HandleMyRole(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	role := h.Engine.ActiveRole(r.Context(), user.UserID)
	if role == nil {
		api.Fail(w, http.StatusNotFound, "no_active_role", "no active role", reqID)
		return
	}
	api.Success(w, role, reqID)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	api.Success(w, map[string]any{
		"userId":      userID,
		"assignments": h.Engine.ListRoles(r.Context(), userID),
	}, requestctx.GetRequestID(r.Context()))
}

type assignRequest struct {
	RoleName string `json:"roleName"`
}

func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload assignRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	roleName := strings.TrimSpace(payload.RoleName)
	if _, known := rbac.Definition(roleName); !known {
		api.Fail(w, http.StatusBadRequest, "unknown_role", "unknown role: "+roleName, reqID)
		return
	}

	targetID := chi.URLParam(r, "userId")
	if h.Users != nil {
		exists, err := h.Users.UserExists(r.Context(), targetID)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "assignment_failed", "failed to resolve target user", reqID)
			return
		}
		if !exists {
			api.Fail(w, http.StatusNotFound, "unknown_user", "no such user", reqID)
			return
		}
	}

	res := h.Engine.AssignRole(r.Context(), targetID, roleName, user.UserID)
	if !res.Success {
		api.Fail(w, http.StatusForbidden, "assignment_denied", res.Message, reqID)
		return
	}
	api.Created(w, res.Role, reqID)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	res := h.Engine.DeactivateRole(r.Context(), chi.URLParam(r, "userId"), user.UserID)
	if !res.Success {
		api.Fail(w, http.StatusForbidden, "deactivation_denied", res.Message, reqID)
		return
	}
	api.Success(w, map[string]any{"deactivated": true}, reqID)
}

type updatePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (h *Handler) HandleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload updatePermissionsRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	res := h.Engine.UpdateUserPermissions(r.Context(), chi.URLParam(r, "userId"), payload.Permissions, user.UserID)
	if !res.Success {
		api.Fail(w, http.StatusForbidden, "update_denied", res.Message, reqID)
		return
	}
	api.Success(w, res.Role, reqID)
}

func (h *Handler) HandleHistoryExport(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	userID := chi.URLParam(r, "userId")
	assignments := h.Engine.ListRoles(r.Context(), userID)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Role Assignment History")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("User: %s", userID))
	pdf.Ln(10)

	if len(assignments) == 0 {
		pdf.Cell(0, 8, "No assignments on record.")
	}
	for _, rec := range assignments {
		state := "inactive"
		if rec.IsActive {
			state = "active"
		}
		pdf.Cell(0, 7, fmt.Sprintf("%s  %s  (%s)", rec.AssignedAt.Format("2006-01-02 15:04"), rec.RoleName, state))
		pdf.Ln(6)
		assignedBy := rec.AssignedBy
		if assignedBy == "" {
			assignedBy = "system bootstrap"
		}
		pdf.Cell(0, 7, fmt.Sprintf("    assigned by %s", assignedBy))
		pdf.Ln(8)
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "roles-"+userID+".pdf"))
	if err := pdf.Output(w); err != nil {
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to render export", reqID)
	}
}
