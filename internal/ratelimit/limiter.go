// ABOUTME: Daily DM budget banded by account age, plus the rejection kill-switch
// ABOUTME: All state lives in the store so restarts and the MCP server see the same view
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/metrics"
	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/notify"
)

// Band caps daily sends for accounts aged MinDays..MaxDays inclusive.
// MaxDays 0 means no upper bound.
type Band struct {
	MinDays int
	MaxDays int
	Limit   int
}

func (b Band) contains(age int) bool {
	return age >= b.MinDays && (b.MaxDays == 0 || age <= b.MaxDays)
}

// DefaultBands is the stock warmup schedule
func DefaultBands() []Band {
	return []Band{
		{MinDays: 1, MaxDays: 3, Limit: 8},
		{MinDays: 4, MaxDays: 7, Limit: 15},
		{MinDays: 8, MaxDays: 14, Limit: 25},
		{MinDays: 15, Limit: 40},
	}
}

// Config tunes the limiter
type Config struct {
	Bands          []Band
	FallbackLimit  int
	RejectionLimit int
	PauseDuration  time.Duration
}

// DefaultConfig returns the stock limits
func DefaultConfig() Config {
	return Config{
		Bands:          DefaultBands(),
		FallbackLimit:  8,
		RejectionLimit: 2,
		PauseDuration:  24 * time.Hour,
	}
}

// Store is the persistence the limiter needs
type Store interface {
	BotState(ctx context.Context) (*models.BotState, error)
	SetPausedUntil(ctx context.Context, until *time.Time) error
	IncrementDMCount(ctx context.Context, day string) (int, error)
	IncrementBotRejections(ctx context.Context) (int, error)
	ResetBotRejections(ctx context.Context) error
	IncrementLeadRejections(ctx context.Context, leadID int64) (int, error)
	ResetLeadRejections(ctx context.Context, leadID int64) error
}

// Option customises a Limiter
type Option func(*Limiter)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithNotifier sends kill-switch events to n
func WithNotifier(n notify.Notifier) Option {
	return func(l *Limiter) { l.notifier = n }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// Limiter gates every outbound message
type Limiter struct {
	store    Store
	cfg      Config
	now      func() time.Time
	notifier notify.Notifier
	logger   *zap.Logger
}

// New builds a limiter over store
func New(store Store, cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		cfg:      cfg,
		now:      time.Now,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	if l.notifier == nil {
		l.notifier = notify.Nop{}
	}
	return l
}

// DailyLimit maps an account age to its cap. Ages outside every band get
// the fallback.
func (l *Limiter) DailyLimit(ageDays int) int {
	for _, b := range l.cfg.Bands {
		if b.contains(ageDays) {
			return b.Limit
		}
	}
	return l.cfg.FallbackLimit
}

// Status is a snapshot of the limiter's view of BotState
type Status struct {
	Paused         bool       `json:"paused"`
	PausedUntil    *time.Time `json:"paused_until,omitempty"`
	SentToday      int        `json:"sent_today"`
	Limit          int        `json:"limit"`
	AccountAgeDays int        `json:"account_age_days"`
	Rejections     int        `json:"consecutive_rejections"`
}

// CanSend reports whether another message may go out right now
func (s Status) CanSend() bool {
	return !s.Paused && s.SentToday < s.Limit
}

// Status reads the current budget and pause state
func (l *Limiter) Status(ctx context.Context) (Status, error) {
	st, err := l.store.BotState(ctx)
	if err != nil {
		return Status{}, err
	}
	now := l.now()
	age := st.AccountAgeDays(now)
	s := Status{
		Paused:         st.IsPaused(now),
		SentToday:      st.SentOn(models.DateOf(now)),
		Limit:          l.DailyLimit(age),
		AccountAgeDays: age,
		Rejections:     st.ConsecutiveRejections,
	}
	if s.Paused {
		s.PausedUntil = st.PausedUntil
	}
	metrics.SetPaused(s.Paused)
	return s, nil
}

// CanSend is false while paused or once today's cap is reached. Call it
// before every individual send.
func (l *Limiter) CanSend(ctx context.Context) (bool, error) {
	s, err := l.Status(ctx)
	if err != nil {
		return false, err
	}
	switch {
	case s.Paused:
		l.logger.Debug("sending blocked: kill-switch active", zap.Timep("paused_until", s.PausedUntil))
	case s.SentToday >= s.Limit:
		l.logger.Debug("sending blocked: daily limit reached", zap.Int("sent", s.SentToday), zap.Int("limit", s.Limit))
	}
	return s.CanSend(), nil
}

// IsPaused reports whether the kill-switch pause is active
func (l *Limiter) IsPaused(ctx context.Context) (bool, error) {
	st, err := l.store.BotState(ctx)
	if err != nil {
		return false, err
	}
	return st.IsPaused(l.now()), nil
}

// RecordSend counts one delivered message against today's budget
func (l *Limiter) RecordSend(ctx context.Context) (int, error) {
	return l.store.IncrementDMCount(ctx, models.DateOf(l.now()))
}

// RecordRejection counts a rejection for lead and bot-wide, tripping the
// kill-switch once either counter reaches the limit
func (l *Limiter) RecordRejection(ctx context.Context, lead models.Lead) (bool, error) {
	leadCount, err := l.store.IncrementLeadRejections(ctx, lead.ID)
	if err != nil {
		return false, err
	}
	botCount, err := l.store.IncrementBotRejections(ctx)
	if err != nil {
		return false, err
	}

	l.logger.Info("rejection recorded",
		zap.String("handle", lead.Handle),
		zap.Int("lead_rejections", leadCount),
		zap.Int("bot_rejections", botCount))

	if leadCount < l.cfg.RejectionLimit && botCount < l.cfg.RejectionLimit {
		return false, nil
	}

	until, err := l.Pause(ctx, l.cfg.PauseDuration)
	if err != nil {
		return false, err
	}
	// A fresh streak is needed to trip again after the pause
	if err := l.store.ResetBotRejections(ctx); err != nil {
		return true, err
	}

	l.logger.Warn("kill-switch tripped",
		zap.String("handle", lead.Handle),
		zap.Time("paused_until", until))
	metrics.RecordKillSwitchTrip()
	_ = l.notifier.Notify(ctx, notify.Event{
		Type:        notify.KillSwitchTripped,
		Handle:      lead.Handle,
		LeadID:      lead.ID,
		PausedUntil: &until,
		At:          l.now(),
	})
	return true, nil
}

// RecordEngagement resets both rejection streaks after a non-rejection reply
func (l *Limiter) RecordEngagement(ctx context.Context, leadID int64) error {
	if err := l.store.ResetLeadRejections(ctx, leadID); err != nil {
		return err
	}
	return l.store.ResetBotRejections(ctx)
}

// Pause stops all sending for d
func (l *Limiter) Pause(ctx context.Context, d time.Duration) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, fmt.Errorf("pause duration must be positive, got %s", d)
	}
	until := l.now().Add(d)
	if err := l.store.SetPausedUntil(ctx, &until); err != nil {
		return time.Time{}, err
	}
	metrics.SetPaused(true)
	return until, nil
}

// Resume lifts an active pause
func (l *Limiter) Resume(ctx context.Context) error {
	if err := l.store.SetPausedUntil(ctx, nil); err != nil {
		return err
	}
	metrics.SetPaused(false)
	return nil
}
