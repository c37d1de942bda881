package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists entries in a render_cache table so cached output
// survives restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// One writer avoids SQLITE_BUSY between concurrent renders.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Migrate creates the cache schema. It is idempotent.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS render_cache (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			compressed INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS render_cache_created_at ON render_cache (created_at);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate cache db: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		e          Entry
		compressed int
		created    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, compressed, created_at FROM render_cache WHERE key = ?`, key,
	).Scan(&e.Value, &compressed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.Compressed = compressed != 0
	e.CreatedAt = time.Unix(0, created)
	return e, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, e Entry) error {
	compressed := 0
	if e.Compressed {
		compressed = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO render_cache (key, value, compressed, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, compressed = excluded.compressed, created_at = excluded.created_at`,
		key, e.Value, compressed, e.CreatedAt.UnixNano())
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM render_cache WHERE key = ?`, key)
	return err
}

func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM render_cache WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM render_cache`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM render_cache`).Scan(&n)
	return n, err
}
