package middleware

import (
	"context"
	"net/http"
	"strings"

	"kpiconsole/internal/domain/auth"
	"kpiconsole/internal/requestctx"
	"kpiconsole/internal/transport/http/api"
)

// TokenVerifier turns a bearer token into the identity it was issued for.
type TokenVerifier interface {
	Verify(token string) (auth.UserContext, error)
}

// Auth attaches the caller's identity when a valid bearer token is present.
// Requests without one pass through anonymously. Browsers' EventSource
// cannot set headers, so an access_token query parameter is accepted too.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			ctx = requestctx.WithActor(ctx, user.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

// WithUser is used by tests and internal callers that already hold an identity.
func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUser, user)
	return requestctx.WithActor(ctx, user.UserID)
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
