package jobs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kpiconsole/internal/platform/store"
)

func TestRunNowRecordsCompletedRun(t *testing.T) {
	svc := New(store.New(store.NewMemoryBackend()))
	ctx := context.Background()

	run, err := svc.RunNow(ctx, JobUnitReport, func(context.Context) (any, error) {
		return map[string]any{"file": "unit.pdf"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)

	stored, err := svc.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, map[string]any{"file": "unit.pdf"}, stored.Details)
}

func TestRunNowRecordsFailure(t *testing.T) {
	svc := New(store.New(store.NewMemoryBackend()))
	ctx := context.Background()
	boom := errors.New("boom")

	run, err := svc.RunNow(ctx, JobStoreSnapshot, func(context.Context) (any, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestEnqueueRunsOnWorker(t *testing.T) {
	svc := New(store.New(store.NewMemoryBackend()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	done := make(chan struct{})
	run, err := svc.Enqueue(ctx, JobStoreSnapshot, func(context.Context) (any, error) {
		close(done)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, run.Status)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
	require.Eventually(t, func() bool {
		r, err := svc.Get(ctx, run.ID)
		return err == nil && r.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEnqueueFullQueue(t *testing.T) {
	svc := New(store.New(store.NewMemoryBackend()))
	svc.queue = make(chan job)
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, JobStoreSnapshot, func(context.Context) (any, error) { return nil, nil })
	require.ErrorIs(t, err, ErrQueueFull)

	runs, err := svc.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
}

func TestListNewestFirstByType(t *testing.T) {
	svc := New(store.New(store.NewMemoryBackend()))
	ctx := context.Background()
	noop := func(context.Context) (any, error) { return nil, nil }

	first, _ := svc.RunNow(ctx, JobUnitReport, noop)
	_, _ = svc.RunNow(ctx, JobStoreSnapshot, noop)
	last, _ := svc.RunNow(ctx, JobUnitReport, noop)

	runs, err := svc.List(ctx, JobUnitReport, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, last.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	limited, err := svc.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestSnapshotTaskWritesAndPrunes(t *testing.T) {
	st := store.New(store.NewMemoryBackend())
	ctx := context.Background()
	payload, err := store.Encode([]string{"Operations"})
	require.NoError(t, err)
	_, err = st.Write(ctx, store.KeyDepartments, payload, 0)
	require.NoError(t, err)

	comp, err := store.NewZstdCompressor()
	require.NoError(t, err)
	defer comp.Close()

	dir := t.TempDir()
	for _, name := range []string{SnapshotName(time.Unix(1, 0)), SnapshotName(time.Unix(2, 0))} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o600))
	}

	details, err := SnapshotTask(st, comp, dir, 2)(ctx)
	require.NoError(t, err)
	info := details.(map[string]any)
	assert.Equal(t, 1, info["collections"])
	assert.Equal(t, 1, info["pruned"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	_, err = os.Stat(filepath.Join(dir, SnapshotName(time.Unix(1, 0))))
	assert.True(t, os.IsNotExist(err))

	raw, err := os.ReadFile(info["file"].(string))
	require.NoError(t, err)
	restored := store.New(store.NewMemoryBackend())
	n, err := restored.Restore(ctx, bytes.NewReader(raw), comp)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
