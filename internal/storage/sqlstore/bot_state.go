// ABOUTME: Singleton bot_state row: pause window, daily DM counter, warmup date, session
// ABOUTME: The daily counter rolls over inside the increment statement itself
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/storage"
)

// BotState loads the singleton row
func (s *Store) BotState(ctx context.Context) (*models.BotState, error) {
	var (
		st     models.BotState
		paused sql.NullTime
	)
	err := s.queryRow(ctx, `
		SELECT paused_until, dms_sent_today, last_dm_date, account_created_date,
			consecutive_rejections, platform_session, updated_at
		FROM bot_state WHERE id = ?
	`, models.BotStateID).Scan(&paused, &st.DMsSentToday, &st.LastDMDate, &st.AccountCreatedDate,
		&st.ConsecutiveRejections, &st.PlatformSession, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.StoreError{Op: "bot state", Err: storage.ErrNotFound}
	}
	if err != nil {
		return nil, wrap("bot state", err)
	}
	st.PausedUntil = nullTime(paused)
	return &st, nil
}

// SetPausedUntil sets or clears the kill-switch pause
func (s *Store) SetPausedUntil(ctx context.Context, until *time.Time) error {
	var v any
	if until != nil {
		v = until.UTC()
	}
	return s.execOne(ctx, "set paused until",
		`UPDATE bot_state SET paused_until = ?, updated_at = ? WHERE id = ?`,
		v, s.now().UTC(), models.BotStateID)
}

// IncrementDMCount counts one DM on day, resetting the counter when day changes
func (s *Store) IncrementDMCount(ctx context.Context, day string) (int, error) {
	return s.returningInt(ctx, "increment dm count", `
		UPDATE bot_state SET
			dms_sent_today = CASE WHEN last_dm_date = ? THEN dms_sent_today + 1 ELSE 1 END,
			last_dm_date = ?,
			updated_at = ?
		WHERE id = ?
		RETURNING dms_sent_today
	`, day, day, s.now().UTC(), models.BotStateID)
}

// IncrementBotRejections bumps the bot-wide consecutive rejection counter
func (s *Store) IncrementBotRejections(ctx context.Context) (int, error) {
	return s.returningInt(ctx, "increment bot rejections", `
		UPDATE bot_state SET consecutive_rejections = consecutive_rejections + 1, updated_at = ?
		WHERE id = ?
		RETURNING consecutive_rejections
	`, s.now().UTC(), models.BotStateID)
}

// ResetBotRejections zeroes the bot-wide consecutive rejection counter
func (s *Store) ResetBotRejections(ctx context.Context) error {
	return s.execOne(ctx, "reset bot rejections",
		`UPDATE bot_state SET consecutive_rejections = 0, updated_at = ? WHERE id = ?`,
		s.now().UTC(), models.BotStateID)
}

// SetAccountCreatedDate records the sending account's creation day
func (s *Store) SetAccountCreatedDate(ctx context.Context, day string) error {
	if _, err := time.Parse(models.DateLayout, day); err != nil {
		return &storage.StoreError{Op: "set account created date", Err: err}
	}
	return s.execOne(ctx, "set account created date",
		`UPDATE bot_state SET account_created_date = ?, updated_at = ? WHERE id = ?`,
		day, s.now().UTC(), models.BotStateID)
}

// SavePlatformSession persists opaque platform session data
func (s *Store) SavePlatformSession(ctx context.Context, session string) error {
	return s.execOne(ctx, "save platform session",
		`UPDATE bot_state SET platform_session = ?, updated_at = ? WHERE id = ?`,
		session, s.now().UTC(), models.BotStateID)
}
