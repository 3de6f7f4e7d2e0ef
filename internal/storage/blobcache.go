/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "littleplanet/internal/log"
	"littleplanet/internal/version"

	_ "modernc.org/sqlite"
)

const (
	CacheFileName = "images.sqlite"
	schemaVersion = 1
)

// ErrNotFound is returned by BlobCache.Get for unknown keys.
var ErrNotFound = errors.New("not found")

// BlobCache is an LRU cache of byte blobs keyed by string (source URLs),
// capped at MaxBytes of payload.
type BlobCache struct {
	db       *sql.DB
	path     string
	maxBytes int64
	log      *slog.Logger
	now      func() time.Time
}

// OpenBlobCache opens or creates the cache in dir. A corrupt database file is
// moved aside and recreated.
func OpenBlobCache(ctx context.Context, dir string, maxBytes int64) (*BlobCache, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "cache_open").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(dir, CacheFileName)
	db, err := openSQLite(ctx, path)
	if err == nil && !healthy(ctx, db) {
		_ = db.Close()
		err = errors.New("integrity check failed")
	}
	if err != nil {
		l.Warn("cache unusable, recreating", slog.Any("err", err))
		moveAside(path)
		if db, err = openSQLite(ctx, path); err != nil {
			return nil, err
		}
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Debug("cache ready", slog.String("path", path))
	return &BlobCache{db: db, path: path, maxBytes: maxBytes, log: l, now: time.Now}, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	return db, nil
}

func healthy(ctx context.Context, db *sql.DB) bool {
	var chk string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check;").Scan(&chk); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(chk), "ok")
}

func moveAside(path string) {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if _, err := os.Stat(path + suffix); err == nil {
			_ = os.Rename(path+suffix, path+suffix+".corrupt-"+stamp)
		}
	}
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blobs (
			key          TEXT PRIMARY KEY,
			data         BLOB NOT NULL,
			size         INTEGER NOT NULL,
			fetched_at   INTEGER NOT NULL,
			last_access  INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_blobs_access ON blobs(last_access);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, `INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET app=excluded.app, updated_at=excluded.updated_at`,
		schemaVersion, version.String(), now, now)
	if err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	return nil
}

// Path returns the database file.
func (c *BlobCache) Path() string { return c.path }

// Close releases the database.
func (c *BlobCache) Close() error { return c.db.Close() }

// Get returns the blob for key and marks it as recently used.
func (c *BlobCache) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, `SELECT data FROM blobs WHERE key=?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query blob: %w", err)
	}
	_, _ = c.db.ExecContext(ctx, `UPDATE blobs SET last_access=? WHERE key=?`, c.now().UnixNano(), key)
	return blob, nil
}

// Put stores blob under key and evicts least recently used entries beyond the cap.
func (c *BlobCache) Put(ctx context.Context, key string, blob []byte) error {
	now := c.now().UnixNano()
	_, err := c.db.ExecContext(ctx, `INSERT INTO blobs(key, data, size, fetched_at, last_access) VALUES(?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET data=excluded.data, size=excluded.size, fetched_at=excluded.fetched_at, last_access=excluded.last_access`,
		key, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert blob: %w", err)
	}
	if c.maxBytes > 0 {
		return c.EvictToFit(ctx, c.maxBytes)
	}
	return nil
}

// Delete drops key; unknown keys are ignored.
func (c *BlobCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM blobs WHERE key=?`, key); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// TotalBytes sums the payload sizes.
func (c *BlobCache) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM blobs`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum sizes: %w", err)
	}
	return total, nil
}

// EvictToFit deletes least recently used entries until the payload fits capBytes.
func (c *BlobCache) EvictToFit(ctx context.Context, capBytes int64) error {
	total, err := c.TotalBytes(ctx)
	if err != nil || total <= capBytes {
		return err
	}
	rows, err := c.db.QueryContext(ctx, `SELECT key, size FROM blobs ORDER BY last_access ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []string
	for rows.Next() && total > capBytes {
		var key string
		var size int64
		if err := rows.Scan(&key, &size); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, key)
		total -= size
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// the single connection must be free before writing
	if err := rows.Close(); err != nil {
		return err
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin evict: %w", err)
	}
	for _, key := range victims {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE key=?`, key); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("evict %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit evict: %w", err)
	}
	c.log.Debug("evicted", slog.Int("entries", len(victims)), slog.Int64("bytes_left", total))
	return nil
}
