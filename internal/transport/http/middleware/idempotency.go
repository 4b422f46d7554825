package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kpiconsole/internal/platform/store"
	"kpiconsole/internal/transport/http/api"
)

var (
	ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")
	ErrIdempotencyInFlight = errors.New("idempotency key is still being processed")
)

const (
	idempotencyCap = 500
	idempotencyTTL = 24 * time.Hour
)

// IdempotencyRecord is a stored response. Status 0 marks a request that
// reserved the key and has not answered yet.
type IdempotencyRecord struct {
	Key         string    `json:"key"`
	RequestHash string    `json:"requestHash"`
	Status      int       `json:"status"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (r IdempotencyRecord) InFlight() bool {
	return r.Status == 0
}

// IdempotencyStore remembers responses to keyed mutations so a retried
// submit replays the first answer instead of creating a duplicate.
type IdempotencyStore struct {
	records *store.Collection[[]IdempotencyRecord]
	now     func() time.Time
}

func NewIdempotencyStore(st *store.Store) *IdempotencyStore {
	return &IdempotencyStore{
		records: store.NewCollection(st, store.KeyIdempotency, func() []IdempotencyRecord { return []IdempotencyRecord{} }),
		now:     time.Now,
	}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Reserve claims key for the caller. When the key already holds a finished
// response that response is returned with replay set. Expired records are
// dropped on the way.
func (s *IdempotencyStore) Reserve(ctx context.Context, key, requestHash string) (IdempotencyRecord, bool, error) {
	now := s.now().UTC()
	cutoff := now.Add(-idempotencyTTL)
	var stored IdempotencyRecord
	replay := false
	err := s.records.Update(ctx, func(records *[]IdempotencyRecord) error {
		replay = false
		live := (*records)[:0:0]
		for _, rec := range *records {
			if !rec.CreatedAt.Before(cutoff) {
				live = append(live, rec)
			}
		}
		for _, rec := range live {
			if rec.Key != key {
				continue
			}
			switch {
			case rec.RequestHash != requestHash:
				return ErrIdempotencyConflict
			case rec.InFlight():
				return ErrIdempotencyInFlight
			}
			stored, replay = rec, true
			if len(live) == len(*records) {
				return store.ErrNoChange
			}
			*records = live
			return nil
		}
		*records = store.AppendCapped(live, IdempotencyRecord{Key: key, RequestHash: requestHash, CreatedAt: now}, idempotencyCap)
		return nil
	})
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return stored, replay, nil
}

// Complete stores the response for a reserved key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, requestHash string, status int, body []byte) error {
	return s.records.Update(ctx, func(records *[]IdempotencyRecord) error {
		for i, rec := range *records {
			if rec.Key == key && rec.RequestHash == requestHash {
				(*records)[i].Status = status
				(*records)[i].Body = body
				return nil
			}
		}
		*records = store.AppendCapped(*records, IdempotencyRecord{
			Key: key, RequestHash: requestHash, Status: status, Body: body, CreatedAt: s.now().UTC(),
		}, idempotencyCap)
		return nil
	})
}

// Release drops an unanswered reservation so the key can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.records.Update(ctx, func(records *[]IdempotencyRecord) error {
		for i, rec := range *records {
			if rec.Key == key && rec.InFlight() {
				*records = append((*records)[:i:i], (*records)[i+1:]...)
				return nil
			}
		}
		return store.ErrNoChange
	})
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

// Idempotent replays the stored response when a request repeats its
// Idempotency-Key. Keys are scoped to the authenticated user and route.
func Idempotent(s *IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
			user, ok := GetUser(r.Context())
			if s == nil || rawKey == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}
			reqID := GetRequestID(r.Context())
			if len(rawKey) > 128 {
				api.Fail(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key too long", reqID)
				return
			}

			payload, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))

			key := user.UserID + ":" + r.Method + ":" + r.URL.Path + ":" + rawKey
			hash := RequestHash(payload)
			stored, found, err := s.Reserve(r.Context(), key, hash)
			switch {
			case errors.Is(err, ErrIdempotencyConflict):
				api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", reqID)
				return
			case errors.Is(err, ErrIdempotencyInFlight):
				w.Header().Set("Retry-After", "1")
				api.Fail(w, http.StatusConflict, "idempotency_in_flight", "a request with this idempotency key is still running", reqID)
				return
			case err != nil:
				api.Fail(w, http.StatusInternalServerError, "idempotency_error", "idempotency lookup failed", reqID)
				return
			}
			if found {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replay", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			completed := false
			defer func() {
				if completed {
					return
				}
				if err := s.Release(context.WithoutCancel(r.Context()), key); err != nil {
					slog.Warn("idempotency release failed", "key", rawKey, "err", err)
				}
			}()
			next.ServeHTTP(capture, r)
			if capture.status >= http.StatusInternalServerError {
				return
			}
			if err := s.Complete(context.WithoutCancel(r.Context()), key, hash, capture.status, capture.body.Bytes()); err != nil {
				slog.Warn("idempotency save failed", "key", rawKey, "err", err)
				return
			}
			completed = true
		})
	}
}
