// ABOUTME: Tests for warmup banding, daily rollover and the kill-switch
// ABOUTME: Runs against in-memory SQLite with a controllable clock
package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/notify"
	"github.com/harper/dmagent/internal/storage/sqlite"
	"github.com/harper/dmagent/internal/storage/sqlstore"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type events struct{ got []notify.Event }

func (e *events) Notify(_ context.Context, ev notify.Event) error {
	e.got = append(e.got, ev)
	return nil
}

func setup(t *testing.T) (*Limiter, *sqlstore.Store, *clock, *events) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)}
	store, err := sqlite.OpenInMemory(context.Background(), sqlstore.WithClock(clk.Now))
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ev := &events{}
	l := New(store, DefaultConfig(), WithClock(clk.Now), WithNotifier(ev))
	return l, store, clk, ev
}

func TestDailyLimit(t *testing.T) {
	l := New(nil, DefaultConfig())

	tests := []struct {
		age  int
		want int
	}{
		{0, 8},
		{1, 8},
		{3, 8},
		{4, 15},
		{5, 15},
		{7, 15},
		{8, 25},
		{14, 25},
		{15, 40},
		{20, 40},
		{1000, 40},
		{-3, 8},
	}
	for _, tt := range tests {
		if got := l.DailyLimit(tt.age); got != tt.want {
			t.Errorf("DailyLimit(%d) = %d, want %d", tt.age, got, tt.want)
		}
	}
}

func TestCanSend_DailyCap(t *testing.T) {
	l, store, clk, _ := setup(t)
	ctx := context.Background()

	// Account created today: age 0 uses the fallback cap of 8
	if err := store.SetAccountCreatedDate(ctx, models.DateOf(clk.Now())); err != nil {
		t.Fatalf("SetAccountCreatedDate() error = %v", err)
	}

	for i := 0; i < 8; i++ {
		ok, err := l.CanSend(ctx)
		if err != nil || !ok {
			t.Fatalf("send %d: CanSend() = %v, %v; want true", i, ok, err)
		}
		if _, err := l.RecordSend(ctx); err != nil {
			t.Fatalf("RecordSend() error = %v", err)
		}
	}

	ok, err := l.CanSend(ctx)
	if err != nil || ok {
		t.Fatalf("after cap: CanSend() = %v, %v; want false", ok, err)
	}

	// Next day the counter starts over and the account is a day older
	clk.Advance(24 * time.Hour)
	ok, err = l.CanSend(ctx)
	if err != nil || !ok {
		t.Fatalf("next day: CanSend() = %v, %v; want true", ok, err)
	}
	n, err := l.RecordSend(ctx)
	if err != nil {
		t.Fatalf("RecordSend() error = %v", err)
	}
	if n != 1 {
		t.Errorf("first send of the day = %d, want 1", n)
	}
}

func TestStatus_AgeBand(t *testing.T) {
	l, store, clk, _ := setup(t)
	ctx := context.Background()

	created := clk.Now().AddDate(0, 0, -5)
	if err := store.SetAccountCreatedDate(ctx, models.DateOf(created)); err != nil {
		t.Fatalf("SetAccountCreatedDate() error = %v", err)
	}

	s, err := l.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if s.AccountAgeDays != 5 || s.Limit != 15 {
		t.Errorf("Status() = age %d limit %d, want age 5 limit 15", s.AccountAgeDays, s.Limit)
	}
}

func TestKillSwitch_TripsAtLimit(t *testing.T) {
	l, store, clk, ev := setup(t)
	ctx := context.Background()

	id, err := store.UpsertLead(ctx, models.NewLead{Handle: "grumpy"})
	if err != nil {
		t.Fatalf("UpsertLead() error = %v", err)
	}
	lead := models.Lead{ID: id, Handle: "grumpy"}

	tripped, err := l.RecordRejection(ctx, lead)
	if err != nil || tripped {
		t.Fatalf("first rejection: tripped = %v, err = %v; want false", tripped, err)
	}
	if ok, _ := l.CanSend(ctx); !ok {
		t.Fatal("CanSend() should hold after one rejection")
	}

	tripped, err = l.RecordRejection(ctx, lead)
	if err != nil || !tripped {
		t.Fatalf("second rejection: tripped = %v, err = %v; want true", tripped, err)
	}
	if ok, _ := l.CanSend(ctx); ok {
		t.Fatal("CanSend() should be false while paused")
	}
	if len(ev.got) != 1 || ev.got[0].Type != notify.KillSwitchTripped {
		t.Fatalf("events = %+v, want one kill-switch event", ev.got)
	}

	st, err := store.BotState(ctx)
	if err != nil {
		t.Fatalf("BotState() error = %v", err)
	}
	want := clk.Now().Add(24 * time.Hour)
	if st.PausedUntil == nil || !st.PausedUntil.Equal(want) {
		t.Errorf("PausedUntil = %v, want %v", st.PausedUntil, want)
	}

	clk.Advance(24*time.Hour + time.Second)
	if ok, _ := l.CanSend(ctx); !ok {
		t.Error("CanSend() should recover once the pause elapses")
	}
}

func TestKillSwitch_StreakAcrossLeads(t *testing.T) {
	l, store, _, _ := setup(t)
	ctx := context.Background()

	var leads []models.Lead
	for _, h := range []string{"a", "b", "c"} {
		id, err := store.UpsertLead(ctx, models.NewLead{Handle: h})
		if err != nil {
			t.Fatalf("UpsertLead(%s) error = %v", h, err)
		}
		leads = append(leads, models.Lead{ID: id, Handle: h})
	}

	if tripped, _ := l.RecordRejection(ctx, leads[0]); tripped {
		t.Fatal("tripped after one rejection")
	}
	// Engagement by another lead breaks the streak
	if err := l.RecordEngagement(ctx, leads[1].ID); err != nil {
		t.Fatalf("RecordEngagement() error = %v", err)
	}
	if tripped, _ := l.RecordRejection(ctx, leads[2]); tripped {
		t.Fatal("streak should have been reset by engagement")
	}
	if tripped, _ := l.RecordRejection(ctx, leads[1]); !tripped {
		t.Fatal("two consecutive bot-wide rejections should trip")
	}
}

func TestPauseResume(t *testing.T) {
	l, _, _, _ := setup(t)
	ctx := context.Background()

	if _, err := l.Pause(ctx, 0); err == nil {
		t.Error("Pause(0) should fail")
	}
	if _, err := l.Pause(ctx, time.Hour); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if paused, _ := l.IsPaused(ctx); !paused {
		t.Fatal("IsPaused() = false after Pause")
	}
	if err := l.Resume(ctx); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if paused, _ := l.IsPaused(ctx); paused {
		t.Error("IsPaused() = true after Resume")
	}
}
