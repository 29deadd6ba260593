package storage

import (
	"context"
	"fmt"

	"batterycare/internal/config"
)

// Store is the app's only persistence layer: flat string keys mapped to
// string values, surviving process restarts. Last write wins.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open constructs the store selected by configuration.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return OpenSQLite(ctx, cfg.Storage.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
