package authhandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/domain/kpi"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
	"kpiconsole/internal/transport/http/shared"
)

// Authenticator issues sessions. The login stub in domain/auth is one
// implementation; a real identity provider can replace it.
type Authenticator interface {
	Start(ctx context.Context, name, role, passkey string) (auth.Session, error)
}

type Handler struct {
	Auth Authenticator
}

func NewHandler(authenticator Authenticator) *Handler {
	return &Handler{Auth: authenticator}
}

type loginRequest struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Passkey string `json:"passkey"`
}

// RegisterRoutes mounts the public login route and the authenticated profile
// route. login is wrapped by the caller's login rate limit.
func (h *Handler) RegisterRoutes(r chi.Router, loginLimit func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		if loginLimit != nil {
			r.With(loginLimit).Post("/login", h.HandleLogin)
		} else {
			r.Post("/login", h.HandleLogin)
		}
		r.With(middleware.RequireUser).Get("/me", h.HandleMe)
	})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := shared.Decode(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("role", payload.Role, "is required")
	if v.Reject(w, reqID) {
		return
	}

	session, err := h.Auth.Start(r.Context(), payload.Name, payload.Role, payload.Passkey)
	switch {
	case errors.Is(err, kpi.ErrUnknownRole):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "role", Reason: "must be a known role"}})
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	case errors.Is(err, auth.ErrRoleMismatch):
		api.Fail(w, http.StatusForbidden, "role_mismatch", "role does not match the registered role", reqID)
		return
	case err != nil:
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to sign in", reqID)
		return
	}
	api.Success(w, session, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	api.Success(w, map[string]any{
		"user":        user.User(),
		"permissions": auth.RolePermissions[user.Role],
	}, middleware.GetRequestID(r.Context()))
}
