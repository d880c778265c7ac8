// ABOUTME: Operator notifications for lead lifecycle and kill-switch events
// ABOUTME: Delivery failures are logged by Multi and never reach the caller
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// EventType doubles as the AMQP routing key
type EventType string

const (
	LeadContacted     EventType = "lead.contacted"
	LeadRejected      EventType = "lead.rejected"
	LeadExited        EventType = "lead.exited"
	LeadConverted     EventType = "lead.converted"
	KillSwitchTripped EventType = "killswitch.tripped"
)

// Event is one notification payload
type Event struct {
	Type   EventType `json:"type"`
	Handle string    `json:"handle,omitempty"`
	LeadID int64     `json:"lead_id,omitempty"`
	Score  int       `json:"score,omitempty"`
	// PausedUntil is set on kill-switch events
	PausedUntil *time.Time `json:"paused_until,omitempty"`
	At          time.Time  `json:"at"`
}

// Notifier delivers events somewhere an operator can see them
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans an event out to every notifier and logs failures instead of returning them
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMulti builds a fan-out notifier; nil entries are skipped
func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Multi{logger: logger}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len reports how many notifiers are attached
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify always returns nil
func (m *Multi) Notify(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			m.logger.Warn("notification failed",
				zap.String("event", string(ev.Type)),
				zap.String("handle", ev.Handle),
				zap.Error(err))
		}
	}
	return nil
}

// Close closes every notifier that holds resources
func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if c, ok := n.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
