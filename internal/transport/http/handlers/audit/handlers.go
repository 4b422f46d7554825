package audithandler

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kpiconsole/internal/domain/audit"
	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
	"kpiconsole/internal/transport/http/shared"
)

type Handler struct {
	Service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermAuditRead))
		r.Get("/", h.handleList)
		r.Get("/export", h.handleExport)
	})
}

func filterFrom(r *http.Request) audit.Filter {
	q := r.URL.Query()
	return audit.Filter{Action: q.Get("action"), User: q.Get("user"), Type: q.Get("type")}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePage(r, 100, kpi.AuditCap)
	filter := filterFrom(r)

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		slog.Warn("audit count failed", "err", err)
	}
	entries, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit entries", reqID)
		return
	}

	shared.SetTotal(w, total)
	api.Success(w, entries, reqID)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.List(r.Context(), filterFrom(r), kpi.AuditCap, 0)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export audit entries", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-log.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "timestamp", "user", "action", "type", "details"}); err != nil {
		slog.Warn("audit export header failed", "err", err)
	}
	for _, e := range entries {
		if err := writer.Write([]string{e.ID, e.Timestamp.Format(time.RFC3339), e.User, e.Action, e.Type, e.Details}); err != nil {
			slog.Warn("audit export row failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("audit export flush failed", "err", err)
	}
}
