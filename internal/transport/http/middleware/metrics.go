package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type RequestObserver interface {
	ObserveRequest(route, method string, status int, duration time.Duration)
}

// Instrument records request counts and latency by chi route pattern so
// path parameters do not explode label cardinality.
func Instrument(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder, ok := w.(*statusRecorder)
			if !ok {
				recorder = &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			}
			next.ServeHTTP(recorder, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			observer.ObserveRequest(route, r.Method, recorder.status, time.Since(start))
		})
	}
}
