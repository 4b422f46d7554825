package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Observer receives store operation timings and conflicts.
type Observer interface {
	ObserveStoreOp(op string, duration time.Duration, err error)
	ObserveStoreConflict(key string)
}

type Option func(*Store)

func WithCache(cache Cache) Option {
	return func(s *Store) { s.cache = cache }
}

func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// Store wraps a Backend with a read cache and a change bus.
type Store struct {
	backend  Backend
	cache    Cache
	bus      *Bus
	observer Observer

	mu   sync.Mutex
	seen map[string]int64

	cacheMu sync.Mutex
	latest  map[string]int64
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		cache:   noopCache{},
		bus:     NewBus(),
		seen:    make(map[string]int64),
		latest:  make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Backend() Backend {
	return s.backend
}

// Read returns the stored record, or an empty record at version 0 when the
// collection was never written.
func (s *Store) Read(ctx context.Context, key string) (Record, error) {
	if rec, ok := s.cache.Get(key); ok {
		return rec, nil
	}
	start := time.Now()
	rec, err := s.backend.Load(ctx, key)
	s.observe("load", start, err)
	if errors.Is(err, ErrNotFound) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, err
	}
	s.remember(key, rec)
	return rec, nil
}

func (s *Store) Write(ctx context.Context, key string, payload []byte, expectedVersion int64) (int64, error) {
	start := time.Now()
	version, err := s.backend.Save(ctx, key, payload, expectedVersion)
	s.observe("save", start, err)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.forget(key, 0)
			if s.observer != nil {
				s.observer.ObserveStoreConflict(key)
			}
		}
		return 0, err
	}
	s.remember(key, Record{Payload: payload, Version: version})
	s.publish(Change{Key: key, Version: version})
	return version, nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.backend.Keys(ctx)
}

func (s *Store) Subscribe(ctx context.Context) <-chan Change {
	return s.bus.Subscribe(ctx)
}

// Start forwards backend change notifications until ctx ends. It is a no-op
// for backends that cannot watch.
func (s *Store) Start(ctx context.Context) {
	watcher, ok := s.backend.(Watcher)
	if !ok {
		return
	}
	go func() {
		for {
			err := watcher.Watch(ctx, func(c Change) {
				s.forget(c.Key, c.Version)
				s.publish(c)
			})
			if ctx.Err() != nil {
				return
			}
			slog.Warn("store watcher stopped", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()
}

func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	_, err := s.backend.Keys(ctx)
	return err
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// remember caches rec unless a newer version of key was already seen.
// Loads and saves finishing out of order never put an older payload back.
func (s *Store) remember(key string, rec Record) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if rec.Version < s.latest[key] {
		return
	}
	s.latest[key] = rec.Version
	s.cache.Set(key, rec)
}

// forget drops the cached entry for key and raises its high-water mark to
// version when that is newer.
func (s *Store) forget(key string, version int64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if version > s.latest[key] {
		s.latest[key] = version
	}
	s.cache.Del(key)
}

// publish drops changes at or below the last version already announced for
// the key, so local saves echoed back by a watcher reach subscribers once.
func (s *Store) publish(c Change) {
	s.mu.Lock()
	if c.Version <= s.seen[c.Key] {
		s.mu.Unlock()
		return
	}
	s.seen[c.Key] = c.Version
	s.mu.Unlock()
	s.bus.Publish(c)
}

func (s *Store) observe(op string, start time.Time, err error) {
	if s.observer == nil {
		return
	}
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.observer.ObserveStoreOp(op, time.Since(start), err)
}
