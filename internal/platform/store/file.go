package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
)

const fileExt = ".kpi"

// Sealer encrypts collection files at rest.
type Sealer interface {
	Seal(plain []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// FileBackend stores one file per collection. A file holds the big-endian
// version followed by the payload, compressed and then sealed. Saves hold a
// per-key lock file so several processes can share one directory.
type FileBackend struct {
	dir        string
	compressor Compressor
	sealer     Sealer
	mu         sync.Mutex
}

func NewFileBackend(dir string, compressor Compressor, sealer Sealer) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileBackend{dir: dir, compressor: compressor, sealer: sealer}, nil
}

func (f *FileBackend) Dir() string {
	return f.dir
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, key+fileExt)
}

func (f *FileBackend) Load(_ context.Context, key string) (Record, error) {
	if !ValidKey(key) {
		return Record{}, ErrInvalidKey
	}
	return f.read(key)
}

func (f *FileBackend) read(key string) (Record, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if f.sealer != nil {
		if data, err = f.sealer.Open(data); err != nil {
			return Record{}, fmt.Errorf("%w: open %s: %v", ErrCorrupt, key, err)
		}
	}
	if f.compressor != nil {
		if data, err = f.compressor.Decompress(data); err != nil {
			return Record{}, fmt.Errorf("%w: decompress %s: %v", ErrCorrupt, key, err)
		}
	}
	if len(data) < 8 {
		return Record{}, fmt.Errorf("%w: %s truncated", ErrCorrupt, key)
	}
	return Record{
		Version: int64(binary.BigEndian.Uint64(data[:8])),
		Payload: data[8:],
	}, nil
}

func (f *FileBackend) Save(_ context.Context, key string, payload []byte, expectedVersion int64) (int64, error) {
	if !ValidKey(key) {
		return 0, ErrInvalidKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lock := flock.New(f.path(key) + ".lock")
	if err := lock.Lock(); err != nil {
		return 0, fmt.Errorf("lock %s: %w", key, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("store unlock failed", "key", key, "err", err)
		}
	}()

	// An undecodable file is treated as absent so it can be rewritten.
	current := int64(0)
	rec, err := f.read(key)
	switch {
	case err == nil:
		current = rec.Version
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCorrupt):
	default:
		return 0, err
	}
	if current != expectedVersion {
		return current, ErrVersionConflict
	}

	next := current + 1
	data := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(data[:8], uint64(next))
	copy(data[8:], payload)
	if f.compressor != nil {
		if data, err = f.compressor.Compress(data); err != nil {
			return 0, err
		}
	}
	if f.sealer != nil {
		if data, err = f.sealer.Seal(data); err != nil {
			return 0, err
		}
	}
	if err := WriteFileAtomic(f.path(key), data); err != nil {
		return 0, err
	}
	return next, nil
}

// WriteFileAtomic replaces name with data through a synced temporary file
// unique to this call.
func WriteFileAtomic(name string, data []byte) error {
	file, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := file.Name()
	if err = file.Chmod(0o600); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err = file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, name)
}

func (f *FileBackend) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch reports collection files replaced by any process until ctx ends.
func (f *FileBackend) Watch(ctx context.Context, notify func(Change)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(f.dir); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, fileExt) {
				continue
			}
			key := strings.TrimSuffix(name, fileExt)
			rec, err := f.read(key)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					slog.Warn("store watch read failed", "key", key, "err", err)
				}
				continue
			}
			notify(Change{Key: key, Version: rec.Version})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("store watcher error", "err", err)
		}
	}
}

func (f *FileBackend) Close() error {
	if f.compressor != nil {
		f.compressor.Close()
	}
	return nil
}
