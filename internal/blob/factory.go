package blob

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a blob backend.
type Config struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// Open returns the Store named by cfg.Driver (memory when empty).
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = string(DriverMemory)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}
