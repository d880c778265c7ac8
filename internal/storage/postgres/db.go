// ABOUTME: PostgreSQL backend for the lead store, selected by DATABASE_URL
// ABOUTME: Uses lib/pq and the shared SQL store with numbered placeholders
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/harper/dmagent/internal/storage/sqlstore"
)

// Dialect is the PostgreSQL flavour of the shared SQL store
var Dialect = sqlstore.Dialect{Name: "postgres", Numbered: true, Schema: Schema}

// Open connects to dsn and initializes the schema
func Open(ctx context.Context, dsn string, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxIdleTime(5 * time.Minute)

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

// Schema contains all SQL statements for database initialization
const Schema = `
CREATE TABLE IF NOT EXISTS leads (
    id BIGSERIAL PRIMARY KEY,
    handle TEXT NOT NULL UNIQUE,
    bio TEXT,
    last_post_excerpt TEXT,
    niche TEXT,
    status TEXT NOT NULL DEFAULT 'new',
    confidence_score INTEGER NOT NULL DEFAULT 0,
    consecutive_rejections INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

CREATE TABLE IF NOT EXISTS conversations (
    id BIGSERIAL PRIMARY KEY,
    lead_id BIGINT NOT NULL UNIQUE REFERENCES leads(id) ON DELETE CASCADE,
    state TEXT NOT NULL DEFAULT 'new',
    message_count INTEGER NOT NULL DEFAULT 0,
    last_message_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id BIGSERIAL PRIMARY KEY,
    conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('bot', 'user')),
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

CREATE TABLE IF NOT EXISTS bot_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    paused_until TIMESTAMPTZ,
    dms_sent_today INTEGER NOT NULL DEFAULT 0,
    last_dm_date TEXT NOT NULL DEFAULT '',
    account_created_date TEXT NOT NULL DEFAULT '',
    consecutive_rejections INTEGER NOT NULL DEFAULT 0,
    platform_session TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL
);
`
