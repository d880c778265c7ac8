// ABOUTME: Pacing ranges and the cycle retry policy for the scheduler loop
// ABOUTME: Configuration errors abort, shutdown stops cleanly, anything else backs off
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/harper/dmagent/internal/config"
)

// Pacing holds every delay the loop waits on
type Pacing struct {
	LeadDelayMin  time.Duration
	LeadDelayMax  time.Duration
	ReplyDelayMin time.Duration
	ReplyDelayMax time.Duration
	IdleMin       time.Duration
	IdleMax       time.Duration
	PausedBackoff time.Duration
}

// DefaultPacing mimics a person checking their phone
func DefaultPacing() Pacing {
	return Pacing{
		LeadDelayMin:  30 * time.Second,
		LeadDelayMax:  90 * time.Second,
		ReplyDelayMin: 20 * time.Second,
		ReplyDelayMax: 60 * time.Second,
		IdleMin:       7 * time.Minute,
		IdleMax:       12 * time.Minute,
		PausedBackoff: time.Hour,
	}
}

// PacingFrom reads the pacing section of cfg
func PacingFrom(cfg *config.Config) Pacing {
	return Pacing{
		LeadDelayMin:  cfg.LeadDelayMin,
		LeadDelayMax:  cfg.LeadDelayMax,
		ReplyDelayMin: cfg.ReplyDelayMin,
		ReplyDelayMax: cfg.ReplyDelayMax,
		IdleMin:       cfg.InboxCheckMin,
		IdleMax:       cfg.InboxCheckMax,
		PausedBackoff: cfg.PausedBackoff,
	}
}

// Decision is what the loop does after a failed cycle
type Decision uint8

const (
	// Retry waits the backoff and runs the next cycle
	Retry Decision = iota
	// Stop ends the loop without error
	Stop
	// Abort ends the loop and returns the error
	Abort
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Stop:
		return "stop"
	case Abort:
		return "abort"
	}
	return "unknown"
}

// RetryPolicy classifies cycle errors
type RetryPolicy struct {
	Backoff time.Duration
	// Fatal reports errors that must abort; nil means configuration errors
	Fatal func(error) bool
}

// DefaultRetryPolicy backs off five minutes
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: 5 * time.Minute}
}

// Decide returns the loop's next move for err
func (p RetryPolicy) Decide(ctx context.Context, err error) Decision {
	fatal := p.Fatal
	if fatal == nil {
		fatal = config.IsConfigurationError
	}
	switch {
	case err == nil:
		return Retry
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return Stop
	case fatal(err):
		return Abort
	}
	return Retry
}
