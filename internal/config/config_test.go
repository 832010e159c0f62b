package config

import (
	"testing"

	"nuggetcore/internal/export"
	"nuggetcore/internal/store"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"NUGGET_HTTP_ADDR", "NUGGET_ENV", "NUGGET_STORAGE_DRIVER",
		"NUGGET_DATA_DIR", "NUGGET_SNAPSHOT_DRIVER",
	} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8081" {
		t.Fatalf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.Env != "development" {
		t.Fatalf("env = %q", cfg.Env)
	}
	if cfg.Storage.Driver != "" {
		t.Fatalf("storage driver = %q, want empty for backend default", cfg.Storage.Driver)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("NUGGET_HTTP_ADDR", ":9000")
	t.Setenv("NUGGET_ENV", "production")
	t.Setenv("NUGGET_STORAGE_DRIVER", "sqlite")
	t.Setenv("NUGGET_SQLITE_PATH", "/tmp/records.db")
	t.Setenv("NUGGET_SNAPSHOT_DRIVER", "s3")
	t.Setenv("NUGGET_SNAPSHOT_S3_BUCKET", "nugget-snaps")
	t.Setenv("NUGGET_SNAPSHOT_S3_PATH_STYLE", "TRUE")

	cfg := FromEnv()
	if cfg.HTTPAddr != ":9000" || cfg.Env != "production" {
		t.Fatalf("server config %#v", cfg)
	}
	if cfg.Storage.Driver != store.BackendSQLite || cfg.Storage.SQLitePath != "/tmp/records.db" {
		t.Fatalf("storage config %#v", cfg.Storage)
	}
	if cfg.Snapshot.Driver != export.DriverS3 || cfg.Snapshot.S3.Bucket != "nugget-snaps" || !cfg.Snapshot.S3.PathStyle {
		t.Fatalf("snapshot config %#v", cfg.Snapshot)
	}
}
