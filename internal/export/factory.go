package export

import (
	"context"
	"fmt"
)

// Config selects and parameterizes a snapshot storage backend.
type Config struct {
	Driver Driver
	Root   string // filesystem root when Driver == fs
	S3     S3Config
}

// Open constructs the configured snapshot store. The filesystem driver is
// the default.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown snapshot driver %s", driver)
	}
}
