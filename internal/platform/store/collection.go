package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const maxUpdateAttempts = 8

// Collection is a typed view over one stored key.
type Collection[T any] struct {
	store *Store
	key   string
	empty func() T
}

func NewCollection[T any](s *Store, key string, empty func() T) *Collection[T] {
	return &Collection[T]{store: s, key: key, empty: empty}
}

func (c *Collection[T]) Key() string {
	return c.key
}

// Load decodes the collection. Unreadable or unknown-schema data yields the
// empty value at the stored version so the next save replaces it.
func (c *Collection[T]) Load(ctx context.Context) (T, int64, error) {
	rec, err := c.store.Read(ctx, c.key)
	if errors.Is(err, ErrCorrupt) {
		slog.Warn("store collection unreadable, using empty default", "key", c.key, "err", err)
		return c.empty(), 0, nil
	}
	if err != nil {
		var zero T
		return zero, 0, err
	}
	if rec.Version == 0 || len(rec.Payload) == 0 {
		return c.empty(), rec.Version, nil
	}
	value := c.empty()
	if err := Decode(rec.Payload, &value); err != nil {
		slog.Warn("store collection decode failed, using empty default", "key", c.key, "version", rec.Version, "err", err)
		return c.empty(), rec.Version, nil
	}
	return value, rec.Version, nil
}

func (c *Collection[T]) Get(ctx context.Context) (T, error) {
	value, _, err := c.Load(ctx)
	return value, err
}

// Update applies fn to the current value and saves the result, re-reading
// and retrying when another writer got there first. fn may run more than
// once and must derive everything from the value it is given. Returning
// ErrNoChange from fn skips the write.
func (c *Collection[T]) Update(ctx context.Context, fn func(*T) error) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		value, version, err := c.Load(ctx)
		if err != nil {
			return err
		}
		if err := fn(&value); err != nil {
			if errors.Is(err, ErrNoChange) {
				return nil
			}
			return err
		}
		payload, err := Encode(value)
		if err != nil {
			return err
		}
		_, err = c.store.Write(ctx, c.key, payload, version)
		if errors.Is(err, ErrVersionConflict) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrVersionConflict, c.key, maxUpdateAttempts)
}

func (c *Collection[T]) Replace(ctx context.Context, value T) error {
	return c.Update(ctx, func(current *T) error {
		*current = value
		return nil
	})
}

// AppendCapped appends item and evicts the oldest entries beyond max.
func AppendCapped[T any](items []T, item T, max int) []T {
	items = append(items, item)
	if max > 0 && len(items) > max {
		items = append(items[:0:0], items[len(items)-max:]...)
	}
	return items
}

// PrependCapped puts item first and drops the entries beyond max.
func PrependCapped[T any](items []T, item T, max int) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	out = append(out, items...)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
