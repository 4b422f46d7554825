package dashboardhandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/dashboard"
	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/domain/transmissions"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
	"kpiconsole/internal/transport/http/shared"
)

type Handler struct {
	Service       *dashboard.Service
	Transmissions *transmissions.Service
}

func NewHandler(service *dashboard.Service, transmissions *transmissions.Service) *Handler {
	return &Handler{Service: service, Transmissions: transmissions}
}

type statsView struct {
	UserID           string           `json:"userId"`
	Validated        *kpi.SystemStats `json:"validated"`
	Metrics          *kpi.Metrics     `json:"metrics,omitempty"`
	PayoutMultiplier *float64         `json:"payoutMultiplier,omitempty"`
}

type scoreRequest struct {
	Role    string             `json:"role"`
	Actuals map[string]float64 `json:"actuals"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermDashboardRead)).Get("/dashboard", h.handleDashboard)
	r.With(middleware.RequirePermission(auth.PermDashboardAggregate)).Get("/dashboard/aggregate", h.handleAggregate)
	r.With(middleware.RequirePermission(auth.PermDashboardRead)).Get("/templates", h.handleTemplates)
	r.With(middleware.RequirePermission(auth.PermDashboardRead)).Post("/score", h.handleScore)
	r.With(middleware.RequireUser).Get("/stats/me", h.handleMyStats)
	r.With(middleware.RequirePermission(auth.PermStatsRead)).Get("/stats/{userID}", h.handleUserStats)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	view, err := h.Service.ForUser(r.Context(), user.User())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "dashboard_failed", "failed to build dashboard", reqID)
		return
	}
	api.Success(w, view, reqID)
}

// handleAggregate defaults a department head to their own unit.
func (h *Handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	department := r.URL.Query().Get("department")
	if department == "" && user.Role == kpi.RoleDeptHead {
		department = user.Department
	}
	summary, err := h.Service.Aggregate(r.Context(), department)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "aggregate_failed", "failed to aggregate figures", reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleTemplates(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Service.Templates(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload scoreRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	role, ok := v.Role("role", payload.Role, false)
	if v.Reject(w, reqID) {
		return
	}
	if !ok {
		role = user.Role
	}

	score, err := h.Service.Score(role, payload.Actuals)
	switch {
	case errors.Is(err, kpi.ErrInvalidMetric), errors.Is(err, kpi.ErrUnknownRole):
		api.Fail(w, http.StatusBadRequest, "invalid_metrics", err.Error(), reqID)
		return
	case err != nil:
		api.Fail(w, http.StatusInternalServerError, "score_failed", "failed to compute score", reqID)
		return
	}
	api.Success(w, map[string]any{"role": role, "score": score}, reqID)
}

func (h *Handler) handleMyStats(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	h.writeStats(w, r, user.UserID)
}

func (h *Handler) handleUserStats(w http.ResponseWriter, r *http.Request) {
	h.writeStats(w, r, chi.URLParam(r, "userID"))
}

func (h *Handler) writeStats(w http.ResponseWriter, r *http.Request, userID string) {
	reqID := middleware.GetRequestID(r.Context())
	stats, ok, err := h.Transmissions.Validated(r.Context(), userID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "stats_failed", "failed to load stats", reqID)
		return
	}
	view := statsView{UserID: userID}
	if ok {
		view.Validated = &stats
		if m, err := kpi.ParseStats(stats); err == nil {
			multiplier := kpi.PayoutMultiplier(m)
			view.Metrics = &m
			view.PayoutMultiplier = &multiplier
		}
	}
	api.Success(w, view, reqID)
}
