package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
)

type snapshotFile struct {
	Schema      int                      `json:"schema"`
	CreatedAt   time.Time                `json:"createdAt"`
	Collections map[string]snapshotEntry `json:"collections"`
}

type snapshotEntry struct {
	Version int64  `json:"version"`
	Payload []byte `json:"payload"`
}

// Snapshot writes every collection to w as zstd-compressed JSON and returns
// the number of collections written.
func (s *Store) Snapshot(ctx context.Context, w io.Writer, compressor Compressor) (int, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return 0, err
	}
	snap := snapshotFile{
		Schema:      SchemaVersion,
		CreatedAt:   time.Now().UTC(),
		Collections: make(map[string]snapshotEntry, len(keys)),
	}
	for _, key := range keys {
		rec, err := s.backend.Load(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("snapshot %s: %w", key, err)
		}
		snap.Collections[key] = snapshotEntry{Version: rec.Version, Payload: rec.Payload}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, err
	}
	compressed, err := compressor.Compress(data)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(compressed); err != nil {
		return 0, err
	}
	return len(snap.Collections), nil
}

// Restore overwrites the collections contained in a snapshot. Restored
// collections get new versions so concurrent readers see the change.
func (s *Store) Restore(ctx context.Context, r io.Reader, compressor Compressor) (int, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	data, err := compressor.Decompress(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if snap.Schema != SchemaVersion {
		return 0, fmt.Errorf("%w: %d", ErrSchema, snap.Schema)
	}

	restored := 0
	for key, entry := range snap.Collections {
		if !ValidKey(key) {
			return restored, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		if err := s.overwrite(ctx, key, entry.Payload); err != nil {
			return restored, fmt.Errorf("restore %s: %w", key, err)
		}
		restored++
	}
	return restored, nil
}

func (s *Store) overwrite(ctx context.Context, key string, payload []byte) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current := int64(0)
		rec, err := s.backend.Load(ctx, key)
		switch {
		case err == nil:
			current = rec.Version
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorrupt):
		default:
			return err
		}
		_, err = s.Write(ctx, key, payload, current)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return err
	}
	return ErrVersionConflict
}
