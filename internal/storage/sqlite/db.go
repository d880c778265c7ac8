// ABOUTME: SQLite backend for the lead store
// ABOUTME: Uses modernc.org/sqlite for pure-Go SQLite support
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"

	"github.com/harper/dmagent/internal/storage/sqlstore"
)

// Dialect is the SQLite flavour of the shared SQL store
var Dialect = sqlstore.Dialect{Name: "sqlite", Schema: Schema}

// DefaultDataDir returns the data directory following the XDG spec
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = xdg.DataHome
	}
	return filepath.Join(dataHome, "dmagent")
}

// DefaultDBPath returns the default database file path
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "leads.db")
}

// Open opens or creates a SQLite database at path and initializes the schema
func Open(ctx context.Context, path string, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// WAL for concurrent readers; busy_timeout so the MCP server and the loop can share a file
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return initStore(ctx, conn, opts)
}

// OpenInMemory creates an in-memory SQLite database (for testing)
func OpenInMemory(ctx context.Context, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	conn, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return initStore(ctx, conn, opts)
}

func initStore(ctx context.Context, conn *sql.DB, opts []sqlstore.Option) (*sqlstore.Store, error) {
	// One writer at a time; this also keeps a :memory: database on a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Duration(0))

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := sqlstore.New(conn, Dialect, opts...)
	if err := store.Init(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}
