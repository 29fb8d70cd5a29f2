package taskshandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"peopleops/internal/domain/rbac"
	"peopleops/internal/domain/tasks"
	"peopleops/internal/platform/requestctx"
	"peopleops/internal/transport/http/api"
	"peopleops/internal/transport/http/middleware"
	"peopleops/internal/transport/http/shared"
)

type Handler struct {
	Store  *tasks.Store
	Engine *rbac.Engine
}

func NewHandler(store *tasks.Store, engine *rbac.Engine) *Handler {
	return &Handler{Store: store, Engine: engine}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	readGuard := middleware.RequireResourcePermission(h.Engine, middleware.ResourceGuard{
		Resource:  "tasks",
		Actions:   []string{"read"},
		Scope:     "team",
		AllowSelf: true,
	})

	r.Route("/tasks", func(r chi.Router) {
		r.With(middleware.RequireAllPermissions(h.Engine, rbac.PermTasksCreate, rbac.PermTasksAssign)).Post("/", h.HandleCreate)
		r.With(readGuard).Get("/", h.HandleList)
		r.Patch("/{id}/status", h.HandleUpdateStatus)
		r.With(middleware.RequirePermission(h.Engine, rbac.PermTasksDelete)).Delete("/{id}", h.HandleDelete)
	})
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssigneeID  string `json:"assigneeId"`
	DueDate     string `json:"dueDate"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("title", payload.Title, "title is required")
	v.Required("assigneeId", payload.AssigneeID, "assigneeId is required")
	task := tasks.Task{
		Title:       strings.TrimSpace(payload.Title),
		Description: strings.TrimSpace(payload.Description),
		AssigneeID:  strings.TrimSpace(payload.AssigneeID),
		CreatedBy:   user.UserID,
		Status:      tasks.StatusOpen,
	}
	if raw := strings.TrimSpace(payload.DueDate); raw != "" {
		if due, ok := v.Date("dueDate", raw); ok {
			task.DueDate = &due
		}
	}
	if v.Reject(w, reqID) {
		return
	}

	created, err := h.Store.Create(r.Context(), task)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "create_failed", "failed to create task", reqID)
		return
	}
	api.Created(w, created, reqID)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	assigneeID := r.URL.Query().Get("userId")
	if assigneeID == "" {
		user, ok := middleware.GetUser(r.Context())
		if !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
			return
		}
		assigneeID = user.UserID
	}

	p := shared.ParsePagination(r, 50, 200)
	list, err := h.Store.ListByAssignee(r.Context(), assigneeID, p.Limit, p.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "list_failed", "failed to list tasks", reqID)
		return
	}
	api.Success(w, map[string]any{
		"assigneeId": assigneeID,
		"tasks":      list,
	}, reqID)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	status := strings.ToLower(strings.TrimSpace(payload.Status))

	v := shared.NewValidator()
	v.Required("status", status, "status is required")
	v.Enum("status", status, tasks.Statuses, "status must be one of open, in_progress, done")
	if v.Reject(w, reqID) {
		return
	}

	task, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, tasks.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "task not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "get_failed", "failed to load task", reqID)
		return
	}

	// Assignees may move their own tasks; anyone else needs a broader
	// tasks.update grant.
	scope := "team"
	if task.AssigneeID == user.UserID {
		scope = "own"
	}
	if !h.Engine.ValidateResourceAccess(r.Context(), user.UserID, "tasks", "update", scope) {
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions to update this task", reqID)
		return
	}

	updated, err := h.Store.UpdateStatus(r.Context(), task.ID, status)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "update_failed", "failed to update task status", reqID)
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	err := h.Store.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, tasks.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "task not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "delete_failed", "failed to delete task", reqID)
		return
	}
	api.Success(w, map[string]any{"deleted": true}, reqID)
}
