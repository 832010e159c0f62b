// Package config assembles runtime configuration from the process
// environment.
package config

import (
	"os"
	"strings"

	"nuggetcore/internal/export"
	"nuggetcore/internal/store"
)

// Config carries everything the server binary needs to wire itself.
//
//	NUGGET_HTTP_ADDR:        listen address (default :8081)
//	NUGGET_ENV:              development|production (default development)
//	NUGGET_STORAGE_DRIVER:   fs|memory|sqlite|postgres (default fs)
//	NUGGET_DATA_DIR:         record root for the fs driver (default ./nuggetdata)
//	NUGGET_SQLITE_PATH:      sqlite file when driver=sqlite
//	NUGGET_POSTGRES_DSN:     postgres DSN when driver=postgres
//	NUGGET_SNAPSHOT_DRIVER:  fs|s3|memory (default fs)
//	NUGGET_SNAPSHOT_DIR:     snapshot root for the fs driver
//	NUGGET_SNAPSHOT_S3_BUCKET / _REGION / _ENDPOINT / _PATH_STYLE: s3 driver
type Config struct {
	HTTPAddr string
	Env      string
	Storage  store.BackendConfig
	Snapshot export.Config
}

// FromEnv reads configuration from environment variables, applying defaults
// for anything unset.
func FromEnv() Config {
	return Config{
		HTTPAddr: envOr("NUGGET_HTTP_ADDR", ":8081"),
		Env:      envOr("NUGGET_ENV", "development"),
		Storage: store.BackendConfig{
			Driver:      store.BackendDriver(os.Getenv("NUGGET_STORAGE_DRIVER")),
			DataDir:     os.Getenv("NUGGET_DATA_DIR"),
			SQLitePath:  os.Getenv("NUGGET_SQLITE_PATH"),
			PostgresDSN: os.Getenv("NUGGET_POSTGRES_DSN"),
		},
		Snapshot: export.Config{
			Driver: export.Driver(os.Getenv("NUGGET_SNAPSHOT_DRIVER")),
			Root:   os.Getenv("NUGGET_SNAPSHOT_DIR"),
			S3: export.S3Config{
				Bucket:    os.Getenv("NUGGET_SNAPSHOT_S3_BUCKET"),
				Region:    os.Getenv("NUGGET_SNAPSHOT_S3_REGION"),
				Endpoint:  os.Getenv("NUGGET_SNAPSHOT_S3_ENDPOINT"),
				PathStyle: strings.EqualFold(os.Getenv("NUGGET_SNAPSHOT_S3_PATH_STYLE"), "true"),
			},
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
