// Package sqlite persists records in an embedded SQLite database, one row
// per record keyed by (namespace, key).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DB wraps a SQLite database shared by every record namespace.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the records table exists.
func Open(path string) (*DB, error) {
	if path == "" {
		path = "nuggetcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (namespace, key)
	)`); err != nil {
		return nil, fmt.Errorf("create records table: %w", err)
	}
	return &DB{db: db, path: path}, nil
}

// Records returns the driver for one namespace.
func (d *DB) Records(namespace string) (*Records, error) {
	if namespace == "" {
		return nil, fmt.Errorf("empty namespace")
	}
	return &Records{db: d.db, namespace: namespace}, nil
}

// Close releases the underlying database handle.
func (d *DB) Close() error { return d.db.Close() }

// Path returns the configured database path.
func (d *DB) Path() string { return d.path }

// Records implements the store driver contract for a single namespace.
type Records struct {
	db        *sql.DB
	namespace string
}

// Load reads every record in the namespace.
func (r *Records) Load(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, payload FROM records WHERE namespace = ?`, r.namespace)
	if err != nil {
		return nil, fmt.Errorf("select %s records: %w", r.namespace, err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", r.namespace, err)
		}
		out[key] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", r.namespace, err)
	}
	return out, nil
}

// Put upserts one record.
func (r *Records) Put(ctx context.Context, key string, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records(namespace, key, payload) VALUES(?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET payload = excluded.payload`,
		r.namespace, key, payload)
	if err != nil {
		return fmt.Errorf("upsert %s record %q: %w", r.namespace, key, err)
	}
	return nil
}

// Delete removes one record.
func (r *Records) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE namespace = ? AND key = ?`, r.namespace, key); err != nil {
		return fmt.Errorf("delete %s record %q: %w", r.namespace, key, err)
	}
	return nil
}
