// Package localcache mirrors entity collections into an embedded sqlite
// database so reads keep working when the primary store is unreachable.
package localcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotCached is returned when no mirrored copy exists for a collection.
var ErrNotCached = errors.New("collection not cached")

const schema = `
CREATE TABLE IF NOT EXISTS mirrors (
	kind       TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	payload    BLOB NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (kind, user_id)
);`

// Cache is a collection mirror backed by a local sqlite file. One row per
// (collection kind, user) pair, holding the JSON-encoded collection.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache file, creating parent directories as
// needed.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent mirror writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// PutCollection stores the JSON encoding of v under the (kind, user) key,
// replacing any previous copy.
func (c *Cache) PutCollection(ctx context.Context, kind, userID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding collection: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO mirrors (kind, user_id, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind, user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		kind, userID, payload, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing mirror: %w", err)
	}
	return nil
}

// GetCollection decodes the mirrored collection into v. Returns ErrNotCached
// when nothing has been mirrored for the key.
func (c *Cache) GetCollection(ctx context.Context, kind, userID string, v any) error {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM mirrors WHERE kind = ? AND user_id = ?`, kind, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotCached
	}
	if err != nil {
		return fmt.Errorf("reading mirror: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding collection: %w", err)
	}
	return nil
}

// DeleteUser drops every mirrored collection for a user, used on sign-out.
func (c *Cache) DeleteUser(ctx context.Context, userID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM mirrors WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing user mirrors: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
