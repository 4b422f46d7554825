package eventshandler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"kpiconsole/internal/platform/store"
	"kpiconsole/internal/transport/http/api"
	"kpiconsole/internal/transport/http/middleware"
)

const keepAlive = 25 * time.Second

type Subscriber interface {
	Subscribe(ctx context.Context) <-chan store.Change
}

type Handler struct {
	Changes Subscriber
}

func NewHandler(changes Subscriber) *Handler {
	return &Handler{Changes: changes}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireUser).Get("/events", h.Stream)
}

// Stream pushes collection change events as Server-Sent Events. Other
// users' history keys are not forwarded.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Fail(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ch := h.Changes.Subscribe(ctx)

	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	ownHistory := store.HistoryKey(user.UserID)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case change, ok := <-ch:
			if !ok {
				return
			}
			if store.IsHistoryKey(change.Key) && change.Key != ownHistory {
				continue
			}
			payload, err := json.Marshal(change)
			if err != nil {
				slog.Warn("event marshal failed", "key", change.Key, "err", err)
				continue
			}
			if _, err := w.Write([]byte("event: change\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
