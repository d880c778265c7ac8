// ABOUTME: Runs the store conformance suite against a live PostgreSQL
// ABOUTME: Skipped unless DMAGENT_TEST_POSTGRES_URL points at a disposable database
package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/harper/dmagent/internal/storage"
	"github.com/harper/dmagent/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	dsn := os.Getenv("DMAGENT_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("DMAGENT_TEST_POSTGRES_URL not set")
	}

	storagetest.Run(t, func(t *testing.T) storage.Store {
		ctx := context.Background()
		s, err := Open(ctx, dsn)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		_, err = s.DB().ExecContext(ctx,
			`TRUNCATE messages, conversations, leads RESTART IDENTITY CASCADE;
			 UPDATE bot_state SET paused_until = NULL, dms_sent_today = 0, last_dm_date = '',
			 account_created_date = '', consecutive_rejections = 0, platform_session = ''`)
		if err != nil {
			t.Fatalf("reset tables: %v", err)
		}
		return s
	})
}

func TestRebind(t *testing.T) {
	got := Dialect.Rebind(`UPDATE leads SET status = ? WHERE id = ? AND handle = ?`)
	want := `UPDATE leads SET status = $1 WHERE id = $2 AND handle = $3`
	if got != want {
		t.Errorf("Rebind() = %q, want %q", got, want)
	}
}
