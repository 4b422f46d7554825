package jobs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"kpiconsole/internal/platform/store"
)

const (
	snapshotPrefix = "snapshot-"
	snapshotSuffix = ".kpi.zst"
)

// SnapshotTask writes a timestamped store snapshot into dir and keeps the
// newest keep files.
func SnapshotTask(st *store.Store, compressor store.Compressor, dir string, keep int) Task {
	return func(ctx context.Context) (any, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		count, err := st.Snapshot(ctx, &buf, compressor)
		if err != nil {
			return nil, err
		}
		name := filepath.Join(dir, SnapshotName(time.Now()))
		if err := store.WriteFileAtomic(name, buf.Bytes()); err != nil {
			return nil, err
		}
		pruned, err := pruneSnapshots(dir, keep)
		if err != nil {
			return nil, fmt.Errorf("prune snapshots: %w", err)
		}
		return map[string]any{
			"file":        name,
			"collections": count,
			"bytes":       buf.Len(),
			"pruned":      pruned,
		}, nil
	}
}

func SnapshotName(at time.Time) string {
	return snapshotPrefix + at.UTC().Format("20060102T150405.000") + snapshotSuffix
}

func pruneSnapshots(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), snapshotPrefix) && strings.HasSuffix(e.Name(), snapshotSuffix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return 0, nil
	}
	sort.Strings(names)
	stale := names[:len(names)-keep]
	for _, name := range stale {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}
