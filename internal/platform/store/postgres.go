package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel carries change notifications between instances sharing one
// database.
const NotifyChannel = "kpi_collections"

// PostgresBackend stores collections in the kv_collections table. The pool
// is owned by the caller.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (p *PostgresBackend) Load(ctx context.Context, key string) (Record, error) {
	var rec Record
	err := p.pool.QueryRow(ctx, `
    SELECT payload, version
    FROM kv_collections
    WHERE key = $1
  `, key).Scan(&rec.Payload, &rec.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (p *PostgresBackend) Save(ctx context.Context, key string, payload []byte, expectedVersion int64) (int64, error) {
	if !ValidKey(key) {
		return 0, ErrInvalidKey
	}
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var next int64
	if expectedVersion == 0 {
		err = tx.QueryRow(ctx, `
      INSERT INTO kv_collections (key, payload, version)
      VALUES ($1, $2, 1)
      ON CONFLICT (key) DO NOTHING
      RETURNING version
    `, key, payload).Scan(&next)
	} else {
		err = tx.QueryRow(ctx, `
      UPDATE kv_collections
      SET payload = $2, version = version + 1, updated_at = now()
      WHERE key = $1 AND version = $3
      RETURNING version
    `, key, payload, expectedVersion).Scan(&next)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrVersionConflict
	}
	if err != nil {
		return 0, err
	}

	note, err := json.Marshal(Change{Key: key, Version: next})
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(note)); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return next, nil
}

func (p *PostgresBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT key FROM kv_collections ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Watch holds one pooled connection in LISTEN mode until ctx ends.
func (p *PostgresBackend) Watch(ctx context.Context, notify func(Change)) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		var change Change
		if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
			slog.Warn("store notification decode failed", "payload", n.Payload, "err", err)
			continue
		}
		notify(change)
	}
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresBackend) Close() error { return nil }
