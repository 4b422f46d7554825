package adminhandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/domain/roster"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
	"kpiconsole/internal/transport/http/shared"
)

type Handler struct {
	Roster *roster.Service
}

func NewHandler(service *roster.Service) *Handler {
	return &Handler{Roster: service}
}

type departmentRequest struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

type provisionRequest struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Passkey    string `json:"passkey"`
	Department string `json:"department"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type transferRequest struct {
	Department string `json:"department"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermRosterManage))
		r.Get("/departments", h.handleDepartments)
		r.Post("/departments", h.handleAddDepartment)
		r.Get("/roster", h.handleRoster)
		r.Get("/personnel", h.handleMembers)
		r.Post("/personnel", h.handleProvision)
		r.Put("/personnel/{name}", h.handleRename)
		r.Post("/personnel/{name}/transfer", h.handleTransfer)
		r.Delete("/personnel/{name}", h.handleDelete)
	})
}

func (h *Handler) handleDepartments(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	departments, err := h.Roster.Departments(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "department_list_failed", "failed to list departments", reqID)
		return
	}
	api.Success(w, departments, reqID)
}

func (h *Handler) handleAddDepartment(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload departmentRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.Required("secret", payload.Secret, "is required")
	if v.Reject(w, reqID) {
		return
	}
	if err := h.Roster.AddDepartment(r.Context(), user.Name, payload.Name, payload.Secret); err != nil {
		writeError(w, reqID, err)
		return
	}
	api.Created(w, map[string]string{"name": payload.Name}, reqID)
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	roster, err := h.Roster.Roster(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "roster_failed", "failed to load roster", reqID)
		return
	}
	api.Success(w, roster, reqID)
}

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	members, err := h.Roster.Members(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "roster_failed", "failed to load personnel", reqID)
		return
	}
	api.Success(w, members, reqID)
}

func (h *Handler) handleProvision(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload provisionRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	role, _ := v.Role("role", payload.Role, true)
	v.Required("department", payload.Department, "is required")
	if v.Reject(w, reqID) {
		return
	}

	member, err := h.Roster.Provision(r.Context(), user.Name, roster.ProvisionRequest{
		Name:       payload.Name,
		Role:       role,
		Passkey:    payload.Passkey,
		Department: payload.Department,
	})
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	api.Created(w, member, reqID)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload renameRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	if v.Reject(w, reqID) {
		return
	}
	member, err := h.Roster.Rename(r.Context(), user.Name, chi.URLParam(r, "name"), payload.Name)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	api.Success(w, member, reqID)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload transferRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Required("department", payload.Department, "is required")
	if v.Reject(w, reqID) {
		return
	}
	member, err := h.Roster.Transfer(r.Context(), user.Name, chi.URLParam(r, "name"), payload.Department)
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	api.Success(w, member, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	if err := h.Roster.Delete(r.Context(), user.Name, chi.URLParam(r, "name")); err != nil {
		writeError(w, reqID, err)
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, reqID)
}

func writeError(w http.ResponseWriter, reqID string, err error) {
	switch {
	case errors.Is(err, roster.ErrNameRequired):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "name", Reason: "is required"}})
	case errors.Is(err, roster.ErrDepartmentRequired):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "department", Reason: "is required"}})
	case errors.Is(err, kpi.ErrUnknownRole):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "role", Reason: "must be a known role"}})
	case errors.Is(err, roster.ErrUnknownDepartment):
		api.Fail(w, http.StatusUnprocessableEntity, "unknown_department", "department does not exist", reqID)
	case errors.Is(err, roster.ErrDuplicateName), errors.Is(err, roster.ErrDepartmentExists):
		api.Fail(w, http.StatusConflict, "conflict", err.Error(), reqID)
	case errors.Is(err, roster.ErrUserNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "person not found", reqID)
	case errors.Is(err, roster.ErrInvalidSecret):
		api.Fail(w, http.StatusForbidden, "invalid_secret", "department secret is invalid", reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "roster_failed", "roster operation failed", reqID)
	}
}
