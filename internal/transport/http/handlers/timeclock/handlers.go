package timeclockhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"peopleops/internal/domain/rbac"
	"peopleops/internal/domain/timeclock"
	"peopleops/internal/platform/requestctx"
	"peopleops/internal/transport/http/api"
	"peopleops/internal/transport/http/middleware"
	"peopleops/internal/transport/http/shared"
)

type Handler struct {
	Store  *timeclock.Store
	Engine *rbac.Engine
}

func NewHandler(store *timeclock.Store, engine *rbac.Engine) *Handler {
	return &Handler{Store: store, Engine: engine}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	readGuard := middleware.RequireResourcePermission(h.Engine, middleware.ResourceGuard{
		Resource:  "time",
		Actions:   []string{"read"},
		Scope:     "team",
		AllowSelf: true,
	})

	r.Route("/time", func(r chi.Router) {
		r.With(middleware.RequirePermission(h.Engine, rbac.PermTimeLog)).Post("/clock-in", h.HandleClockIn)
		r.With(middleware.RequirePermission(h.Engine, rbac.PermTimeLog)).Post("/clock-out", h.HandleClockOut)
		r.With(readGuard).Get("/entries", h.HandleEntries)
		r.With(readGuard).Get("/summary", h.HandleSummary)
	})
}

type clockInRequest struct {
	Note string `json:"note"`
}

func (h *Handler) HandleClockIn(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload clockInRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}

	entry, err := h.Store.ClockIn(r.Context(), user.UserID, payload.Note)
	if errors.Is(err, timeclock.ErrAlreadyClockedIn) {
		api.Fail(w, http.StatusConflict, "already_clocked_in", "an open entry already exists", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "clock_in_failed", "failed to record clock-in", reqID)
		return
	}
	api.Created(w, entry, reqID)
}

func (h *Handler) HandleClockOut(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	entry, err := h.Store.ClockOut(r.Context(), user.UserID)
	if errors.Is(err, timeclock.ErrNotClockedIn) {
		api.Fail(w, http.StatusConflict, "not_clocked_in", "no open entry to close", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "clock_out_failed", "failed to record clock-out", reqID)
		return
	}
	api.Success(w, entry, reqID)
}

// subjectUser resolves whose entries to show. The guard has already
// decided whether the caller may look at someone else's.
func subjectUser(r *http.Request) string {
	if target := r.URL.Query().Get("userId"); target != "" {
		return target
	}
	if user, ok := middleware.GetUser(r.Context()); ok {
		return user.UserID
	}
	return ""
}

func (h *Handler) entriesFor(r *http.Request) ([]timeclock.Entry, string, error) {
	userID := subjectUser(r)
	if userID == "" {
		return nil, "", errors.New("no subject user")
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, err := shared.ParseDate(raw); err == nil {
			from = parsed
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if parsed, err := shared.ParseDate(raw); err == nil {
			to = parsed.AddDate(0, 0, 1)
		}
	}

	entries, err := h.Store.ListEntries(r.Context(), userID, from, to)
	return entries, userID, err
}

func (h *Handler) HandleEntries(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	entries, userID, err := h.entriesFor(r)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "list_failed", "failed to list time entries", reqID)
		return
	}
	api.Success(w, map[string]any{
		"userId":  userID,
		"entries": entries,
	}, reqID)
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	reqID := requestctx.GetRequestID(r.Context())

	entries, userID, err := h.entriesFor(r)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "summary_failed", "failed to build summary", reqID)
		return
	}
	api.Success(w, map[string]any{
		"userId": userID,
		"days":   timeclock.Summarize(entries),
	}, reqID)
}
