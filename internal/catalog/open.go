package catalog

import (
	"context"
	"fmt"

	"seasonbot/internal/config"
)

// Open returns the backend selected by storage.backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.Storage.SQLitePath)
	case config.BackendPostgres, config.BackendMySQL:
		return OpenSQL(ctx, cfg.Storage.Backend, cfg.Storage.DSN, SQLOptions{MaxOpenConns: cfg.Storage.MaxOpenConns})
	case config.BackendJSON:
		return OpenJSON(cfg.Storage.JSONPath)
	default:
		return nil, fmt.Errorf("storage.backend: unsupported value %q", cfg.Storage.Backend)
	}
}
