package jobshandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/platform/jobs"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
	"kpiconsole/internal/transport/http/shared"
)

// Auditor records operator-triggered runs.
type Auditor interface {
	Record(ctx context.Context, actor, action, details, entryType string) (kpi.AuditEntry, error)
}

type Handler struct {
	Jobs     *jobs.Service
	Snapshot jobs.Task
	Audit    Auditor
}

func NewHandler(service *jobs.Service, snapshot jobs.Task, audit Auditor) *Handler {
	return &Handler{Jobs: service, Snapshot: snapshot, Audit: audit}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermSystemOperate))
		r.Get("/", h.handleList)
		r.Get("/{runID}", h.handleGet)
		r.Post("/snapshot", h.handleSnapshot)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePage(r, 50, 200)
	runs, err := h.Jobs.List(r.Context(), r.URL.Query().Get("type"), page.Limit)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_list_failed", "failed to list job runs", reqID)
		return
	}
	api.Success(w, runs, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	run, err := h.Jobs.Get(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, jobs.ErrRunNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_lookup_failed", "failed to load job run", reqID)
		return
	}
	api.Success(w, run, reqID)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())
	if h.Snapshot == nil {
		api.Fail(w, http.StatusServiceUnavailable, "snapshots_disabled", "snapshot directory is not configured", reqID)
		return
	}
	run, err := h.Jobs.Enqueue(r.Context(), jobs.JobStoreSnapshot, h.Snapshot)
	if errors.Is(err, jobs.ErrQueueFull) {
		api.Fail(w, http.StatusServiceUnavailable, "queue_full", "job queue is full", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_failed", "failed to queue snapshot", reqID)
		return
	}
	if h.Audit != nil {
		if _, err := h.Audit.Record(r.Context(), user.Name, kpi.ActionStoreSnapshot, "Store snapshot requested (run "+run.ID+")", kpi.AuditInfo); err != nil {
			slog.Warn("snapshot audit failed", "err", err)
		}
	}
	api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: run, RequestID: reqID})
}
