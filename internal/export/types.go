// Package export stores point-in-time state snapshots in a blob backend.
// Snapshots are the out-of-band repair and backup artifact for the pool
// invariant: operators export, inspect, and if needed replay them.
package export

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver identifies a snapshot storage backend.
type Driver string

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem Driver = "fs"
	// DriverS3 is the S3-compatible driver.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-memory test driver.
	DriverMemory Driver = "memory"
)

// Info describes a stored snapshot object.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// ErrExists indicates a create-only write hit an existing key.
var ErrExists = errors.New("snapshot already exists")

// Store is the interface for snapshot storage backends. Put is create-only:
// snapshot keys embed a timestamp and are never overwritten.
type Store interface {
	Driver() Driver
	Put(ctx context.Context, key string, r io.Reader) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Delete(ctx context.Context, key string) (bool, error)
}
