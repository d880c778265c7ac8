// ABOUTME: BotState is the process-wide singleton row (id = 1)
// ABOUTME: Holds the kill-switch pause, the daily DM counter and warmup date
package models

import (
	"math"
	"time"
)

// DateLayout is the calendar-day format used for last_dm_date and account_created_date
const DateLayout = "2006-01-02"

// BotStateID is the primary key of the singleton row
const BotStateID = 1

// BotState is the global kill-switch and daily counter
type BotState struct {
	PausedUntil           *time.Time `json:"paused_until,omitempty"`
	DMsSentToday          int        `json:"dms_sent_today"`
	LastDMDate            string     `json:"last_dm_date"`
	AccountCreatedDate    string     `json:"account_created_date,omitempty"`
	ConsecutiveRejections int        `json:"consecutive_rejections"`
	PlatformSession       string     `json:"-"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// DateOf returns the calendar day of t in t's location
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// IsPaused reports whether the kill-switch pause is still in effect at now
func (b *BotState) IsPaused(now time.Time) bool {
	return b.PausedUntil != nil && now.Before(*b.PausedUntil)
}

// SentOn returns the number of DMs sent on day; a stale counter reads as zero
func (b *BotState) SentOn(day string) int {
	if b.LastDMDate != day {
		return 0
	}
	return b.DMsSentToday
}

// AccountAgeDays returns whole days between the account creation date and now.
// An unset or unparseable date counts as day 1.
func (b *BotState) AccountAgeDays(now time.Time) int {
	if b.AccountCreatedDate == "" {
		return 1
	}
	created, err := time.ParseInLocation(DateLayout, b.AccountCreatedDate, now.Location())
	if err != nil {
		return 1
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(math.Round(today.Sub(created).Hours() / 24))
}
