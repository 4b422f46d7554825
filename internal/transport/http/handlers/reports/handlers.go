package reportshandler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/domain/reports"
	"kpiconsole/internal/platform/jobs"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
)

type Handler struct {
	Service   *reports.Service
	Jobs      *jobs.Service
	ReportDir string
}

func NewHandler(service *reports.Service, jobService *jobs.Service, reportDir string) *Handler {
	return &Handler{Service: service, Jobs: jobService, ReportDir: reportDir}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermReportsGenerate))
		r.Get("/unit", h.handleUnitReport)
		r.Post("/unit", h.handleQueueUnitReport)
	})
}

// department scopes supervisors and department heads to their own unit.
func department(r *http.Request, user auth.UserContext) string {
	if user.Role == kpi.RoleSupervisor || user.Role == kpi.RoleDeptHead {
		if user.Department != "" {
			return user.Department
		}
	}
	return r.URL.Query().Get("department")
}

func (h *Handler) handleUnitReport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	dept := department(r, user)

	out, err := h.Service.UnitReport(r.Context(), user.Name, dept)
	if errors.Is(err, reports.ErrDepartmentRequired) {
		api.Fail(w, http.StatusBadRequest, "department_required", "department is required", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to generate report", reqID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "unit-report.pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleQueueUnitReport writes the report to the report directory on the
// job worker and returns the queued run.
func (h *Handler) handleQueueUnitReport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	dept := department(r, user)
	if dept == "" {
		api.Fail(w, http.StatusBadRequest, "department_required", "department is required", reqID)
		return
	}

	actor := user.Name
	run, err := h.Jobs.Enqueue(r.Context(), jobs.JobUnitReport, func(ctx context.Context) (any, error) {
		path, err := h.Service.WriteUnitReport(ctx, actor, dept, h.ReportDir)
		if err != nil {
			return nil, err
		}
		return map[string]any{"department": dept, "file": path}, nil
	})
	if errors.Is(err, jobs.ErrQueueFull) {
		api.Fail(w, http.StatusServiceUnavailable, "queue_full", "job queue is full", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_failed", "failed to queue report", reqID)
		return
	}
	api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: run, RequestID: reqID})
}
