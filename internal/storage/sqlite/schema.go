// ABOUTME: SQLite database schema for the lead store
// ABOUTME: Creates leads, conversations, messages and the bot_state singleton
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
CREATE TABLE IF NOT EXISTS leads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    handle TEXT NOT NULL UNIQUE,
    bio TEXT,
    last_post_excerpt TEXT,
    niche TEXT,
    status TEXT NOT NULL DEFAULT 'new',
    confidence_score INTEGER NOT NULL DEFAULT 0,
    consecutive_rejections INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);

CREATE TABLE IF NOT EXISTS conversations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lead_id INTEGER NOT NULL UNIQUE REFERENCES leads(id) ON DELETE CASCADE,
    state TEXT NOT NULL DEFAULT 'new',
    message_count INTEGER NOT NULL DEFAULT 0,
    last_message_at DATETIME,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('bot', 'user')),
    content TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

CREATE TABLE IF NOT EXISTS bot_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    paused_until DATETIME,
    dms_sent_today INTEGER NOT NULL DEFAULT 0,
    last_dm_date TEXT NOT NULL DEFAULT '',
    account_created_date TEXT NOT NULL DEFAULT '',
    consecutive_rejections INTEGER NOT NULL DEFAULT 0,
    platform_session TEXT NOT NULL DEFAULT '',
    updated_at DATETIME NOT NULL
);
`
