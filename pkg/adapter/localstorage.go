package adapter

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/m-mizutani/goerr/v2"

	_ "modernc.org/sqlite"
)

// InMemoryLocalStorage is the path that keeps the store in memory only.
const InMemoryLocalStorage = ":memory:"

// LocalStorage is durable key/value storage scoped to this installation.
type LocalStorage interface {
	// Get returns model.ErrKeyNotFound when nothing is stored under key
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

type sqliteStorage struct {
	db *sql.DB
}

// NewLocalStorage opens (creating if needed) a SQLite backed store at path.
func NewLocalStorage(ctx context.Context, path string) (LocalStorage, error) {
	if path == "" {
		return nil, goerr.New("local storage path is required")
	}

	if path != InMemoryLocalStorage {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, goerr.Wrap(err, "failed to create local storage directory", goerr.V("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open local storage", goerr.V("path", path))
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	const schema = `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize local storage", goerr.V("path", path))
	}

	return &sqliteStorage{db: db}, nil
}

func (s *sqliteStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(model.ErrKeyNotFound, "no value stored", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to read local storage", goerr.V("key", key))
	}
	return value, nil
}

func (s *sqliteStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to write local storage", goerr.V("key", key))
	}
	return nil
}

func (s *sqliteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return goerr.Wrap(err, "failed to delete from local storage", goerr.V("key", key))
	}
	return nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
