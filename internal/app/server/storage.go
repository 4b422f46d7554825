package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"kpiconsole/internal/platform/config"
	"kpiconsole/internal/platform/crypto"
	"kpiconsole/internal/platform/db"
	"kpiconsole/internal/platform/store"
)

// Storage is the opened persistence stack. Pool is nil unless the postgres
// driver is selected.
type Storage struct {
	Store      *store.Store
	Compressor *store.ZstdCompressor
	Cipher     *crypto.Cipher
	Pool       *pgxpool.Pool
}

// OpenStorage selects the backend named by the configuration.
func OpenStorage(ctx context.Context, cfg config.Config, opts ...store.Option) (*Storage, error) {
	compressor, err := store.NewZstdCompressor()
	if err != nil {
		return nil, err
	}
	cipher, err := crypto.NewCipher(cfg.DataEncryptionKey)
	if err != nil {
		compressor.Close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	s := &Storage{Compressor: compressor, Cipher: cipher}

	var backend store.Backend
	switch cfg.StoreDriver {
	case config.StoreMemory:
		backend = store.NewMemoryBackend()
	case config.StoreFile:
		fb, err := store.NewFileBackend(cfg.StoreDir, compressor, cipher)
		if err != nil {
			compressor.Close()
			return nil, fmt.Errorf("open file store: %w", err)
		}
		backend = fb
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			compressor.Close()
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, false); err != nil {
				pool.Close()
				compressor.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		s.Pool = pool
		backend = store.NewPostgresBackend(pool)
	default:
		compressor.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	opts = append([]store.Option{store.WithCache(store.NewFreeCache(cfg.CacheSizeMB))}, opts...)
	s.Store = store.New(backend, opts...)
	return s, nil
}

func (s *Storage) Close() {
	if err := s.Store.Close(); err != nil {
		slog.Warn("store close failed", "err", err)
	}
	s.Compressor.Close()
	if s.Pool != nil {
		s.Pool.Close()
	}
}
