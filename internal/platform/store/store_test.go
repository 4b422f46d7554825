package store

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Note string `json:"note"`
}

func emptyItems() []item { return []item{} }

func TestMemoryBackendVersioning(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	_, err := b.Load(ctx, "kpi.audit")
	require.ErrorIs(t, err, ErrNotFound)

	v, err := b.Save(ctx, "kpi.audit", []byte("a"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = b.Save(ctx, "kpi.audit", []byte("b"), 0)
	require.ErrorIs(t, err, ErrVersionConflict)

	v, err = b.Save(ctx, "kpi.audit", []byte("b"), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	_, err = b.Save(ctx, "../etc/passwd", []byte("x"), 0)
	require.ErrorIs(t, err, ErrInvalidKey)
}

// racingBackend lets a competing writer win the first save.
type racingBackend struct {
	*MemoryBackend
	raced atomic.Bool
	saves atomic.Int32
	loads atomic.Int32
}

func (r *racingBackend) Load(ctx context.Context, key string) (Record, error) {
	r.loads.Add(1)
	return r.MemoryBackend.Load(ctx, key)
}

func (r *racingBackend) Save(ctx context.Context, key string, payload []byte, expected int64) (int64, error) {
	r.saves.Add(1)
	if r.raced.CompareAndSwap(false, true) {
		competing, _ := Encode([]item{{ID: "other"}})
		if _, err := r.MemoryBackend.Save(ctx, key, competing, expected); err != nil {
			return 0, err
		}
	}
	return r.MemoryBackend.Save(ctx, key, payload, expected)
}

func TestCollectionUpdateRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	backend := &racingBackend{MemoryBackend: NewMemoryBackend()}
	col := NewCollection(New(backend), "kpi.pending", emptyItems)

	calls := 0
	err := col.Update(ctx, func(items *[]item) error {
		calls++
		*items = append(*items, item{ID: "mine"})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	got, version, err := col.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, []item{{ID: "other"}, {ID: "mine"}}, got)
}

func TestCollectionUpdateNoChangeSkipsWrite(t *testing.T) {
	ctx := context.Background()
	backend := &racingBackend{MemoryBackend: NewMemoryBackend()}
	backend.raced.Store(true)
	col := NewCollection(New(backend), "kpi.pending", emptyItems)

	err := col.Update(ctx, func(*[]item) error { return ErrNoChange })
	require.NoError(t, err)
	assert.Zero(t, backend.saves.Load())
}

func TestCollectionCorruptPayloadFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	_, err := backend.Save(ctx, "kpi.pending", []byte("{not json"), 0)
	require.NoError(t, err)
	col := NewCollection(New(backend), "kpi.pending", emptyItems)

	got, version, err := col.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int64(1), version)

	require.NoError(t, col.Update(ctx, func(items *[]item) error {
		*items = append(*items, item{ID: "fresh"})
		return nil
	}))
	got, err = col.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "fresh"}}, got)
}

func TestCollectionUnknownSchemaFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	_, err := backend.Save(ctx, "kpi.audit", []byte(`{"schema":7,"data":[{"id":"x"}]}`), 0)
	require.NoError(t, err)

	got, err := NewCollection(New(backend), "kpi.audit", emptyItems).Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeErrors(t *testing.T) {
	var out []item
	assert.ErrorIs(t, Decode([]byte("nope"), &out), ErrCorrupt)
	assert.ErrorIs(t, Decode([]byte(`{"schema":2,"data":[]}`), &out), ErrSchema)
	assert.ErrorIs(t, Decode([]byte(`{"schema":1}`), &out), ErrCorrupt)
	assert.ErrorIs(t, Decode([]byte(`{"schema":1,"data":{"id":1}}`), &out), ErrCorrupt)
}

func TestAppendCappedEvictsOldest(t *testing.T) {
	var items []int
	for i := 0; i < 501; i++ {
		items = AppendCapped(items, i, 500)
	}
	require.Len(t, items, 500)
	assert.Equal(t, 1, items[0])
	assert.Equal(t, 500, items[499])
}

func TestPrependCappedKeepsNewest(t *testing.T) {
	items := []string{"c", "b", "a"}
	items = PrependCapped(items, "d", 3)
	assert.Equal(t, []string{"d", "c", "b"}, items)
}

func TestStoreReadUsesCache(t *testing.T) {
	ctx := context.Background()
	backend := &racingBackend{MemoryBackend: NewMemoryBackend()}
	backend.raced.Store(true)
	s := New(backend, WithCache(NewFreeCache(1)))

	_, err := s.Write(ctx, "kpi.roster", []byte("payload"), 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec, err := s.Read(ctx, "kpi.roster")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(rec.Payload))
		assert.Equal(t, int64(1), rec.Version)
	}
	assert.Zero(t, backend.loads.Load())

	rec, err := s.Read(ctx, "kpi.missing")
	require.NoError(t, err)
	assert.Zero(t, rec.Version)
}

func TestStoreCacheDropsRefusedLargeEntries(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), WithCache(NewFreeCache(1)))

	_, err := s.Write(ctx, "kpi.pending", []byte("small"), 0)
	require.NoError(t, err)
	rec, err := s.Read(ctx, "kpi.pending")
	require.NoError(t, err)
	require.Equal(t, "small", string(rec.Payload))

	large := bytes.Repeat([]byte("x"), 16*1024)
	v, err := s.Write(ctx, "kpi.pending", large, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	rec, err = s.Read(ctx, "kpi.pending")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, len(large), len(rec.Payload))
}

func TestStoreCacheNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), WithCache(NewFreeCache(1)))
	_, err := s.Write(ctx, "kpi.audit", []byte("v1"), 0)
	require.NoError(t, err)
	_, err = s.Write(ctx, "kpi.audit", []byte("v2"), 1)
	require.NoError(t, err)

	// A load that started before the second save finishes last.
	s.remember("kpi.audit", Record{Payload: []byte("v1"), Version: 1})
	rec, err := s.Read(ctx, "kpi.audit")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(rec.Payload))

	// A watcher reporting a newer version evicts and blocks older entries.
	s.forget("kpi.audit", 5)
	s.remember("kpi.audit", Record{Payload: []byte("v2"), Version: 2})
	rec, err = s.Read(ctx, "kpi.audit")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, "v2", string(rec.Payload))
}

func TestCollectionGrowsPastCacheEntryLimit(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryBackend(), WithCache(NewFreeCache(8)))
	items := NewCollection(s, "kpi.audit", emptyItems)
	note := string(bytes.Repeat([]byte("n"), 120))

	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("item-%03d", i)
		require.NoError(t, items.Update(ctx, func(v *[]item) error {
			*v = append(*v, item{ID: id, Note: note})
			return nil
		}))
		got, err := items.Get(ctx)
		require.NoError(t, err)
		require.Len(t, got, i+1)
		require.Equal(t, id, got[i].ID)
	}
}

func TestStoreSubscribeReceivesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(NewMemoryBackend())
	changes := s.Subscribe(ctx)

	_, err := s.Write(context.Background(), "kpi.audit", []byte("x"), 0)
	require.NoError(t, err)

	select {
	case c := <-changes:
		assert.Equal(t, Change{Key: "kpi.audit", Version: 1}, c)
	case <-time.After(time.Second):
		t.Fatal("no change received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-changes
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestStorePublishDropsEchoes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(NewMemoryBackend())
	changes := s.Subscribe(ctx)

	s.publish(Change{Key: "kpi.audit", Version: 2})
	s.publish(Change{Key: "kpi.audit", Version: 2})
	s.publish(Change{Key: "kpi.audit", Version: 1})

	assert.Equal(t, Change{Key: "kpi.audit", Version: 2}, <-changes)
	select {
	case c := <-changes:
		t.Fatalf("unexpected change %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	defer comp.Close()

	src := New(NewMemoryBackend())
	require.NoError(t, NewCollection(src, KeyAudit, emptyItems).Replace(ctx, []item{{ID: "a1"}}))
	require.NoError(t, NewCollection(src, HistoryKey("u1"), emptyItems).Replace(ctx, []item{{ID: "t1"}}))

	var buf bytes.Buffer
	n, err := src.Snapshot(ctx, &buf, comp)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst := New(NewMemoryBackend())
	require.NoError(t, NewCollection(dst, KeyAudit, emptyItems).Replace(ctx, []item{{ID: "stale"}}))

	n, err = dst.Restore(ctx, &buf, comp)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	audit, version, err := NewCollection(dst, KeyAudit, emptyItems).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "a1"}}, audit)
	assert.Equal(t, int64(2), version)

	history, err := NewCollection(dst, HistoryKey("u1"), emptyItems).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "t1"}}, history)
}

func TestRestoreRejectsGarbage(t *testing.T) {
	comp, err := NewZstdCompressor()
	require.NoError(t, err)
	defer comp.Close()

	_, err = New(NewMemoryBackend()).Restore(context.Background(), bytes.NewReader([]byte("garbage")), comp)
	assert.ErrorIs(t, err, ErrCorrupt)
}
