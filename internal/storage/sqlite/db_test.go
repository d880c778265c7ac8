// ABOUTME: Tests for SQLite database connection and schema initialization
// ABOUTME: Runs the shared store conformance suite against an in-memory database
package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/storage"
	"github.com/harper/dmagent/internal/storage/sqlstore"
	"github.com/harper/dmagent/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := OpenInMemory(context.Background())
		if err != nil {
			t.Fatalf("OpenInMemory() error = %v", err)
		}
		return s
	})
}

func TestSchemaInitialization(t *testing.T) {
	s, err := OpenInMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	tables := []string{"leads", "conversations", "messages", "bot_state"}
	for _, table := range tables {
		var name string
		err := s.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s does not exist: %v", table, err)
		}
	}

	var rows int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM bot_state").Scan(&rows); err != nil {
		t.Fatalf("count bot_state: %v", err)
	}
	if rows != 1 {
		t.Errorf("bot_state rows = %d, want 1", rows)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "leads.db")

	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "leads.db")

	s, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := s.UpsertLead(ctx, models.NewLead{Handle: "keeper"}); err != nil {
		t.Fatalf("UpsertLead() error = %v", err)
	}
	if _, err := s.IncrementDMCount(ctx, "2026-03-01"); err != nil {
		t.Fatalf("IncrementDMCount() error = %v", err)
	}
	_ = s.Close()

	s, err = Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = s.Close() }()

	lead, err := s.GetLeadByHandle(ctx, "keeper")
	if err != nil || lead == nil {
		t.Fatalf("GetLeadByHandle() = %v, %v; want lead", lead, err)
	}
	st, err := s.BotState(ctx)
	if err != nil {
		t.Fatalf("BotState() error = %v", err)
	}
	if st.DMsSentToday != 1 {
		t.Errorf("DMsSentToday = %d, want 1 (seed must not reset existing state)", st.DMsSentToday)
	}
}

func TestClockOption(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	s, err := OpenInMemory(ctx, sqlstore.WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	if _, err := s.UpsertLead(ctx, models.NewLead{Handle: "timed"}); err != nil {
		t.Fatalf("UpsertLead() error = %v", err)
	}
	lead, err := s.GetLeadByHandle(ctx, "timed")
	if err != nil {
		t.Fatalf("GetLeadByHandle() error = %v", err)
	}
	if !lead.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", lead.CreatedAt, fixed)
	}
}
