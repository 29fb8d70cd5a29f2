package employeeshandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"peopleops/internal/domain/employees"
	"peopleops/internal/domain/rbac"
	"peopleops/internal/platform/requestctx"
	"peopleops/internal/transport/http/api"
	"peopleops/internal/transport/http/middleware"
	"peopleops/internal/transport/http/shared"
)

type Handler struct {
	Store  *employees.Store
	Engine *rbac.Engine
}

func NewHandler(store *employees.Store, engine *rbac.Engine) *Handler {
	return &Handler{Store: store, Engine: engine}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(h.Engine, rbac.PermEmployeesCreate)).Post("/", h.HandleCreate)
		r.With(middleware.RequireAnyPermission(h.Engine, rbac.PermEmployeesRead, rbac.PermEmployeesTeam)).Get("/", h.HandleList)
		r.With(middleware.RequireAnyPermission(h.Engine, rbac.PermEmployeesRead, rbac.PermEmployeesTeam)).Get("/{id}", h.HandleGet)
		r.With(middleware.RequirePermission(h.Engine, rbac.PermEmployeesUpdate)).Put("/{id}", h.HandleUpdate)
		r.With(middleware.RequirePermission(h.Engine, rbac.PermEmployeesDelete)).Delete("/{id}", h.HandleDeactivate)
	})

	r.Route("/profile", func(r chi.Router) {
		r.With(middleware.RequirePermission(h.Engine, rbac.PermProfileRead)).Get("/", h.HandleProfile)
		r.With(middleware.RequirePermission(h.Engine, rbac.PermProfileUpdate)).Put("/", h.HandleUpdateProfile)
	})
}

type employeePayload struct {
	UserID     string `json:"userId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Title      string `json:"title"`
	Department string `json:"department"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	var payload employeePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("userId", payload.UserID, "userId is required")
	v.Required("firstName", payload.FirstName, "firstName is required")
	v.Required("lastName", payload.LastName, "lastName is required")
	v.Required("email", payload.Email, "email is required")
	if v.Reject(w, reqID) {
		return
	}

	emp, err := h.Store.Create(r.Context(), employees.Employee{
		UserID:     strings.TrimSpace(payload.UserID),
		FirstName:  strings.TrimSpace(payload.FirstName),
		LastName:   strings.TrimSpace(payload.LastName),
		Email:      strings.ToLower(strings.TrimSpace(payload.Email)),
		Title:      strings.TrimSpace(payload.Title),
		Department: strings.TrimSpace(payload.Department),
		Status:     employees.StatusActive,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "create_failed", "failed to create employee", reqID)
		return
	}
	api.Created(w, emp, reqID)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	p := shared.ParsePagination(r, 50, 200)

	list, err := h.Store.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "list_failed", "failed to list employees", reqID)
		return
	}
	api.Success(w, map[string]any{
		"employees": list,
		"limit":     p.Limit,
		"offset":    p.Offset,
	}, reqID)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	emp, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, employees.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "get_failed", "failed to load employee", reqID)
		return
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	emp, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, employees.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "get_failed", "failed to load employee", reqID)
		return
	}

	h.applyUpdate(w, r, emp, reqID)
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	err := h.Store.SetStatus(r.Context(), chi.URLParam(r, "id"), employees.StatusInactive)
	if errors.Is(err, employees.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "update_failed", "failed to deactivate employee", reqID)
		return
	}
	api.Success(w, map[string]any{"status": employees.StatusInactive}, reqID)
}

func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	emp, err := h.Store.GetByUserID(r.Context(), user.UserID)
	if errors.Is(err, employees.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "no employee record for this account", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "get_failed", "failed to load profile", reqID)
		return
	}
	api.Success(w, emp, reqID)
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	emp, err := h.Store.GetByUserID(r.Context(), user.UserID)
	if errors.Is(err, employees.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "no employee record for this account", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "get_failed", "failed to load profile", reqID)
		return
	}

	h.applyUpdate(w, r, emp, reqID)
}

func (h *Handler) applyUpdate(w http.ResponseWriter, r *http.Request, emp employees.Employee, reqID string) {
	var payload employeePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	if s := strings.TrimSpace(payload.FirstName); s != "" {
		emp.FirstName = s
	}
	if s := strings.TrimSpace(payload.LastName); s != "" {
		emp.LastName = s
	}
	if s := strings.TrimSpace(payload.Email); s != "" {
		emp.Email = strings.ToLower(s)
	}
	if s := strings.TrimSpace(payload.Title); s != "" {
		emp.Title = s
	}
	if s := strings.TrimSpace(payload.Department); s != "" {
		emp.Department = s
	}

	updated, err := h.Store.Update(r.Context(), emp)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "update_failed", "failed to update employee", reqID)
		return
	}
	api.Success(w, updated, reqID)
}
