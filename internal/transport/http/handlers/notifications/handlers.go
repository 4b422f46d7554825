package notificationshandler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/notifications"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
)

type Handler struct {
	Service *notifications.Service
}

func NewHandler(service *notifications.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermNotificationsRead))
		r.Get("/", h.handleList)
		r.Delete("/", h.handleDismissAll)
		r.Delete("/{notificationID}", h.handleDismiss)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	items, err := h.Service.List(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_list_failed", "failed to list notifications", reqID)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(items)))
	api.Success(w, items, reqID)
}

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	err := h.Service.Dismiss(r.Context(), user.UserID, chi.URLParam(r, "notificationID"))
	if errors.Is(err, notifications.ErrNotificationNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "notification not found", reqID)
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_update_failed", "failed to dismiss notification", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "dismissed"}, reqID)
}

func (h *Handler) handleDismissAll(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	reqID := middleware.GetRequestID(r.Context())

	removed, err := h.Service.DismissAll(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "notification_update_failed", "failed to dismiss notifications", reqID)
		return
	}
	api.Success(w, map[string]int{"dismissed": removed}, reqID)
}
