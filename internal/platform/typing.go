// ABOUTME: Decorator that waits a human typing delay before every send
// ABOUTME: Delay is len(text) * per-character speed plus a random pause
package platform

import (
	"context"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/util"
)

// TypingOptions configures the simulated typing delay
type TypingOptions struct {
	PerChar  time.Duration
	PauseMin time.Duration
	PauseMax time.Duration
}

// Typing wraps a Client so SendMessage is preceded by a typing delay
type Typing struct {
	Client
	opts   TypingOptions
	sleep  func(context.Context, time.Duration) error
	jitter func(lo, hi time.Duration) time.Duration
	logger *zap.Logger
}

// NewTyping decorates inner
func NewTyping(inner Client, opts TypingOptions, logger *zap.Logger) *Typing {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Typing{Client: inner, opts: opts, sleep: util.Sleep, jitter: util.Between, logger: logger}
}

// Delay returns the wait before sending text
func (t *Typing) Delay(text string) time.Duration {
	return time.Duration(utf8.RuneCountInString(text))*t.opts.PerChar + t.jitter(t.opts.PauseMin, t.opts.PauseMax)
}

// SendMessage waits the typing delay, then delegates. A shutdown during the
// wait returns the context error without sending.
func (t *Typing) SendMessage(ctx context.Context, handle, text string) error {
	d := t.Delay(text)
	t.logger.Debug("simulating typing", zap.String("handle", handle), zap.Duration("delay", d))
	if err := t.sleep(ctx, d); err != nil {
		return err
	}
	return t.Client.SendMessage(ctx, handle, text)
}
