package announcementshandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpiconsole/internal/domain/announcements"
	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
	"kpiconsole/internal/transport/http/shared"
)

type Handler struct {
	Service *announcements.Service
}

func NewHandler(service *announcements.Service) *Handler {
	return &Handler{Service: service}
}

type broadcastRequest struct {
	Department string `json:"department"`
	Message    string `json:"message"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/announcements", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAnnouncementsRead)).Get("/", h.handleActive)
		r.With(middleware.RequirePermission(auth.PermAnnouncementsSend)).Post("/", h.handleBroadcast)
	})
}

// handleActive lists the caller's department unless another is asked for.
func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	department := r.URL.Query().Get("department")
	if department == "" {
		department = user.Department
	}
	if department == "" {
		api.Success(w, []any{}, reqID)
		return
	}
	items, err := h.Service.Active(r.Context(), department, h.Service.Now())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "announcement_list_failed", "failed to list announcements", reqID)
		return
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload broadcastRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Text("message", payload.Message, "is required")
	if v.Reject(w, reqID) {
		return
	}

	item, err := h.Service.Broadcast(r.Context(), user.User(), payload.Department, payload.Message)
	switch {
	case errors.Is(err, announcements.ErrDepartmentRequired):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "department", Reason: "is required"}})
		return
	case errors.Is(err, announcements.ErrForeignDepartment):
		api.Fail(w, http.StatusForbidden, "forbidden_department", "announcements may only target your own department", reqID)
		return
	case errors.Is(err, announcements.ErrMessageRequired):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "message", Reason: "is required"}})
		return
	case err != nil:
		api.Fail(w, http.StatusInternalServerError, "announcement_failed", "failed to broadcast announcement", reqID)
		return
	}
	api.Created(w, item, reqID)
}
