package store

import (
	"context"
	"fmt"

	"maml/internal/config"
)

// Open creates the document store selected by cfg.Store.Backend. Paths in cfg
// should already be resolved against the workspace.
func Open(ctx context.Context, cfg *config.Config) (DocumentStore, error) {
	switch cfg.Store.Backend {
	case "", "file":
		return NewFileStore(cfg.Store.Dir)
	case "sqlite":
		return NewSQLiteStore(cfg.Store.SQLitePath)
	case "postgres":
		return NewPostgresStore(ctx, cfg.Store.Postgres, cfg.GetConnMaxLifetime())
	case "redis":
		return NewRedisStore(ctx, cfg.Store.Redis)
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Store.Backend)
	}
}
