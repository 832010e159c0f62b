package store

import (
	"fmt"

	"nuggetcore/internal/store/fs"
	"nuggetcore/internal/store/memory"
	"nuggetcore/internal/store/postgres"
	"nuggetcore/internal/store/sqlite"
)

// BackendDriver identifies a concrete record persistence implementation.
type BackendDriver string

const (
	BackendFS       BackendDriver = "fs"       // one JSON file per record (default)
	BackendMemory   BackendDriver = "memory"   // in-memory only (tests / ephemeral)
	BackendSQLite   BackendDriver = "sqlite"   // embedded sqlite file
	BackendPostgres BackendDriver = "postgres" // PostgreSQL server
)

// BackendConfig selects and parameterizes a record persistence backend.
type BackendConfig struct {
	Driver      BackendDriver
	DataDir     string // fs root, one subdirectory per namespace
	SQLitePath  string
	PostgresDSN string
}

// Backend hands out per-namespace drivers sharing one underlying medium,
// so each entity type persists under its own directory or table namespace.
type Backend interface {
	Driver(namespace string) (Driver, error)
	Close() error
}

// OpenBackend constructs the configured persistence backend. The fs driver
// is the default.
func OpenBackend(cfg BackendConfig) (Backend, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = BackendFS
	}
	switch driver {
	case BackendFS:
		return fsBackend{root: cfg.DataDir}, nil
	case BackendMemory:
		return memoryBackend{}, nil
	case BackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return sqliteBackend{db: db}, nil
	case BackendPostgres:
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return postgresBackend{db: db}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

type fsBackend struct{ root string }

func (b fsBackend) Driver(namespace string) (Driver, error) { return fs.New(b.root, namespace) }
func (b fsBackend) Close() error                            { return nil }

type memoryBackend struct{}

func (memoryBackend) Driver(string) (Driver, error) { return memory.New(), nil }
func (memoryBackend) Close() error                  { return nil }

type sqliteBackend struct{ db *sqlite.DB }

func (b sqliteBackend) Driver(namespace string) (Driver, error) { return b.db.Records(namespace) }
func (b sqliteBackend) Close() error                            { return b.db.Close() }

type postgresBackend struct{ db *postgres.DB }

func (b postgresBackend) Driver(namespace string) (Driver, error) { return b.db.Records(namespace) }
func (b postgresBackend) Close() error                            { return b.db.Close() }
