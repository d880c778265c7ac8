// ABOUTME: Tests for lead validation, handle normalization and bot-state helpers
// ABOUTME: Includes the unanswered-user-message lookup used for dedupe

package models

import (
	"testing"
	"time"
)

func TestNormalizeHandle(t *testing.T) {
	tests := map[string]string{
		"@Cafe_Tashkent": "cafe_tashkent",
		"  shop.uz ":     "shop.uz",
		"@":              "",
		"plain":          "plain",
	}
	for in, want := range tests {
		if got := NormalizeHandle(in); got != want {
			t.Errorf("NormalizeHandle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewLeadValidate(t *testing.T) {
	tests := []struct {
		name    string
		lead    NewLead
		wantErr bool
	}{
		{"valid", NewLead{Handle: "shop", Niche: NicheEcommerce}, false},
		{"no niche yet", NewLead{Handle: "shop"}, false},
		{"empty handle", NewLead{Handle: " @ "}, true},
		{"unknown niche", NewLead{Handle: "shop", Niche: "crypto"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.lead.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAccountAgeDays(t *testing.T) {
	now := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		created string
		want    int
	}{
		{"", 1},
		{"not-a-date", 1},
		{"2026-10-14", 0},
		{"2026-10-07", 7},
		{"2026-09-14", 30},
	}

	for _, tt := range tests {
		b := BotState{AccountCreatedDate: tt.created}
		if got := b.AccountAgeDays(now); got != tt.want {
			t.Errorf("AccountAgeDays(%q) = %d, want %d", tt.created, got, tt.want)
		}
	}
}

func TestBotStatePauseAndCounter(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)
	b := BotState{PausedUntil: &until, DMsSentToday: 4, LastDMDate: "2026-10-13"}

	if !b.IsPaused(now) {
		t.Error("should be paused before PausedUntil")
	}
	if b.IsPaused(until) {
		t.Error("pause should end at PausedUntil")
	}
	if got := b.SentOn(DateOf(now)); got != 0 {
		t.Errorf("stale counter read as %d, want 0", got)
	}
	if got := b.SentOn("2026-10-13"); got != 4 {
		t.Errorf("SentOn(last day) = %d, want 4", got)
	}
}

func TestLastUserMessage(t *testing.T) {
	history := []Message{
		{ID: 1, Role: RoleBot, Content: "Salom!"},
		{ID: 2, Role: RoleUser, Content: "qanday?"},
	}

	msg, answered := LastUserMessage(history)
	if msg == nil || msg.ID != 2 || answered {
		t.Errorf("got %v answered=%v, want message 2 unanswered", msg, answered)
	}

	history = append(history, Message{ID: 3, Role: RoleBot, Content: "Albatta"})
	msg, answered = LastUserMessage(history)
	if msg == nil || msg.ID != 2 || !answered {
		t.Errorf("got %v answered=%v, want message 2 answered", msg, answered)
	}

	msg, _ = LastUserMessage(history[:1])
	if msg != nil {
		t.Errorf("no user message expected, got %v", msg)
	}
}
