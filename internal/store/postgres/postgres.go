// Package postgres persists records in a PostgreSQL table, mirroring the
// sqlite driver's (namespace, key) layout.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/nuggetcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// DB wraps a Postgres connection shared by every record namespace.
type DB struct {
	db *sql.DB
}

// Open connects using the provided DSN (falling back to a local default),
// verifies connectivity, and ensures the records table exists.
func Open(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS records (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (namespace, key)
	)`); err != nil {
		return nil, fmt.Errorf("ensure records table: %w", err)
	}
	return &DB{db: db}, nil
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

// DB exposes the underlying sql.DB for integration testing hooks.
func (d *DB) SQL() *sql.DB { return d.db }

// Records implements the store driver contract for a single namespace.
type Records struct {
	db        *sql.DB
	namespace string
}

// Load reads every record in the namespace.
func (r *Records) Load(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, payload FROM records WHERE namespace = $1`, r.namespace)
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
		`INSERT INTO records(namespace, key, payload) VALUES($1, $2, $3)
		 ON CONFLICT(namespace, key) DO UPDATE SET payload = EXCLUDED.payload`,
		r.namespace, key, payload)
	if err != nil {
		return fmt.Errorf("upsert %s record %q: %w", r.namespace, key, err)
	}
	return nil
}

// Delete removes one record.
func (r *Records) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE namespace = $1 AND key = $2`, r.namespace, key); err != nil {
		return fmt.Errorf("delete %s record %q: %w", r.namespace, key, err)
	}
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
