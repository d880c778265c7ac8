// ABOUTME: Picks the storage backend: PostgreSQL when a DSN is set, SQLite otherwise
// ABOUTME: Kept apart from package storage so the backends can import the contract
package backend

import (
	"context"

	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/storage"
	"github.com/harper/dmagent/internal/storage/postgres"
	"github.com/harper/dmagent/internal/storage/sqlite"
)

// Options selects and configures a backend
type Options struct {
	// DatabaseURL selects PostgreSQL when non-empty
	DatabaseURL string
	// DBPath is the SQLite file; empty means sqlite.DefaultDBPath()
	DBPath string
}

// Open returns an initialized store for opts
func Open(ctx context.Context, opts Options, logger *zap.Logger) (storage.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DatabaseURL != "" {
		logger.Debug("opening postgres store")
		return postgres.Open(ctx, opts.DatabaseURL)
	}
	path := opts.DBPath
	if path == "" {
		path = sqlite.DefaultDBPath()
	}
	logger.Debug("opening sqlite store", zap.String("path", path))
	return sqlite.Open(ctx, path)
}
