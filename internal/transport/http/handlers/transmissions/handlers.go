package transmissionshandler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/domain/transmissions"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
	"kpiconsole/internal/transport/http/shared"
)

type Handler struct {
	Service     *transmissions.Service
	Idempotency *middleware.IdempotencyStore
}

func NewHandler(service *transmissions.Service, idempotency *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Idempotency: idempotency}
}

type statsRequest struct {
	ResponseTime string `json:"responseTime"`
	Accuracy     string `json:"accuracy"`
	Uptime       string `json:"uptime"`
}

func (p statsRequest) stats() kpi.SystemStats {
	return kpi.SystemStats{ResponseTime: p.ResponseTime, Accuracy: p.Accuracy, Uptime: p.Uptime}
}

func (p statsRequest) validate(v *shared.Validator) {
	v.Required("responseTime", p.ResponseTime, "is required")
	v.Required("accuracy", p.Accuracy, "is required")
	v.Required("uptime", p.Uptime, "is required")
}

type overrideRequest struct {
	statsRequest
	Justification string `json:"justification"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// queueItem is a pending transmission with its triage flag.
type queueItem struct {
	kpi.Transmission
	Flagged bool `json:"flagged"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/transmissions", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermTransmissionsSubmit), middleware.Idempotent(h.Idempotency)).Post("/", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermTransmissionsSubmit)).Get("/mine", h.handleMine)
		r.With(middleware.RequirePermission(auth.PermTransmissionsReview)).Get("/", h.handleQueue)
		r.With(middleware.RequirePermission(auth.PermTransmissionsReview)).Get("/{transmissionID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermTransmissionsReview)).Post("/{transmissionID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermTransmissionsReview)).Post("/{transmissionID}/override", h.handleOverride)
		r.With(middleware.RequirePermission(auth.PermTransmissionsReview)).Post("/{transmissionID}/reject", h.handleReject)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload statsRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	payload.validate(v)
	if v.Reject(w, reqID) {
		return
	}

	t, err := h.Service.Submit(r.Context(), transmissions.Submitter{ID: user.UserID, Name: user.Name, Department: user.Department}, payload.stats())
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	api.Created(w, queueItem{Transmission: t, Flagged: kpi.IsFlagged(t.SystemStats)}, reqID)
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	pending, err := h.Service.PendingFor(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "transmission_list_failed", "failed to list transmissions", reqID)
		return
	}
	history, err := h.Service.History(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "transmission_list_failed", "failed to list transmissions", reqID)
		return
	}
	api.Success(w, map[string]any{"pending": pending, "history": history}, reqID)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	list := h.Service.Pending
	if r.URL.Query().Get("flagged") == "true" {
		list = h.Service.Flagged
	}
	pending, err := list(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "transmission_list_failed", "failed to list transmissions", reqID)
		return
	}
	items := make([]queueItem, 0, len(pending))
	for _, t := range pending {
		items = append(items, queueItem{Transmission: t, Flagged: kpi.IsFlagged(t.SystemStats)})
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	t, err := h.Service.Get(r.Context(), chi.URLParam(r, "transmissionID"))
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	api.Success(w, queueItem{Transmission: t, Flagged: kpi.IsFlagged(t.SystemStats)}, reqID)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	res, err := h.Service.Approve(r.Context(), reviewer(user), chi.URLParam(r, "transmissionID"))
	writeResolution(w, middleware.GetRequestID(r.Context()), res, err)
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload overrideRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	payload.validate(v)
	v.Text("justification", payload.Justification, "is required for an override")
	if v.Reject(w, reqID) {
		return
	}

	res, err := h.Service.Override(r.Context(), reviewer(user), chi.URLParam(r, "transmissionID"), payload.stats(), payload.Justification)
	writeResolution(w, reqID, res, err)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	var payload rejectRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	v := shared.NewValidator()
	v.Text("reason", payload.Reason, "is required for a rejection")
	if v.Reject(w, reqID) {
		return
	}

	res, err := h.Service.Reject(r.Context(), reviewer(user), chi.URLParam(r, "transmissionID"), payload.Reason)
	writeResolution(w, reqID, res, err)
}

func reviewer(user auth.UserContext) transmissions.Reviewer {
	return transmissions.Reviewer{ID: user.UserID, Name: user.Name}
}

// writeResolution reports a lost race as a soft notice rather than an error.
func writeResolution(w http.ResponseWriter, reqID string, res transmissions.Resolution, err error) {
	if err != nil {
		writeError(w, reqID, err)
		return
	}
	if res.Outcome == transmissions.OutcomeAlreadyResolved {
		api.Success(w, map[string]any{
			"outcome": res.Outcome,
			"notice":  "This transmission was already resolved by another reviewer.",
		}, reqID)
		return
	}
	api.Success(w, res, reqID)
}

func writeError(w http.ResponseWriter, reqID string, err error) {
	switch {
	case errors.Is(err, kpi.ErrMissingMetric), errors.Is(err, kpi.ErrInvalidMetric):
		api.Fail(w, http.StatusBadRequest, "invalid_metrics", err.Error(), reqID)
	case errors.Is(err, transmissions.ErrJustificationRequired):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "justification", Reason: "is required for an override"}})
	case errors.Is(err, transmissions.ErrReasonRequired):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "reason", Reason: "is required for a rejection"}})
	case errors.Is(err, transmissions.ErrTransmissionNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "transmission not found", reqID)
	case errors.Is(err, transmissions.ErrSubmitterRequired):
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "transmission_failed", "transmission operation failed", reqID)
	}
}
