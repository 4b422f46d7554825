package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("collection not found")
	ErrVersionConflict = errors.New("collection version conflict")
	ErrInvalidKey      = errors.New("invalid collection key")
	ErrCorrupt         = errors.New("collection payload is corrupt")
	ErrSchema          = errors.New("collection schema is not supported")
	// ErrNoChange lets an Update callback skip the write.
	ErrNoChange = errors.New("no change")
)

// Record is a serialized collection together with the version it was read at.
// A collection that was never written has version 0.
type Record struct {
	Payload []byte
	Version int64
}

type Change struct {
	Key     string `json:"key"`
	Version int64  `json:"version"`
}

// Backend persists whole collections. Save succeeds only when
// expectedVersion matches the stored version, and returns the new version.
type Backend interface {
	Load(ctx context.Context, key string) (Record, error)
	Save(ctx context.Context, key string, payload []byte, expectedVersion int64) (int64, error)
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Watcher is implemented by backends that can report changes made by other
// processes sharing the same storage.
type Watcher interface {
	Watch(ctx context.Context, notify func(Change)) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}
