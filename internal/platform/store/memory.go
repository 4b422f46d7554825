package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps collections in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return Record{Payload: append([]byte(nil), rec.Payload...), Version: rec.Version}, nil
}

func (m *MemoryBackend) Save(_ context.Context, key string, payload []byte, expectedVersion int64) (int64, error) {
	if !ValidKey(key) {
		return 0, ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.records[key].Version
	if current != expectedVersion {
		return current, ErrVersionConflict
	}
	next := current + 1
	m.records[key] = Record{Payload: append([]byte(nil), payload...), Version: next}
	return next, nil
}

func (m *MemoryBackend) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryBackend) Close() error { return nil }
