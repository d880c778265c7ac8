// ABOUTME: Backend-agnostic generator: niche detection, openers and replies with retries
// ABOUTME: Every error returned is a *GenerationError
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/util"
)

// Completer is one text-generation backend
type Completer interface {
	// Complete returns the model's answer to user under the system instruction
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// Options tunes retries around a Completer
type Options struct {
	Timeout    time.Duration // per attempt
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultOptions mirrors the configuration defaults
func DefaultOptions() Options {
	return Options{Timeout: 30 * time.Second, MaxRetries: 2, RetryDelay: 2 * time.Second}
}

// Client implements the generation collaborator over any Completer
type Client struct {
	backend Completer
	opts    Options
	logger  *zap.Logger
}

// NewClient wraps backend with retry behaviour
func NewClient(backend Completer, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Client{backend: backend, opts: opts, logger: logger}
}

// DetectNiche classifies a profile, falling back to business on any failure
func (c *Client) DetectNiche(ctx context.Context, bio, lastPost string) string {
	out, err := c.complete(ctx, "detect niche", "", nichePrompt(bio, lastPost))
	if err != nil {
		c.logger.Warn("niche detection failed", zap.Error(err))
		return models.NicheBusiness
	}
	niche := strings.ToLower(out)
	if !models.IsNiche(niche) {
		return models.NicheBusiness
	}
	return niche
}

// GenerateOpening writes a personalised first message
func (c *Client) GenerateOpening(ctx context.Context, in OpeningInput) (string, error) {
	return c.complete(ctx, "generate opening", SystemPrompt, openingPrompt(in))
}

// GenerateReply continues the conversation from its full history
func (c *Client) GenerateReply(ctx context.Context, in ReplyInput) (string, error) {
	return c.complete(ctx, "generate reply", SystemPrompt, replyPrompt(in))
}

func (c *Client) complete(ctx context.Context, op, system, user string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := util.Sleep(ctx, util.CalculateBackoff(c.opts.RetryDelay, attempt)); err != nil {
				return "", &GenerationError{Op: op, Err: err}
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		out, err := c.backend.Complete(attemptCtx, system, user)
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			c.logger.Debug("generation attempt failed",
				zap.String("op", op), zap.String("backend", c.backend.Name()), zap.Error(err))
			continue
		}

		out = cleanOutput(out)
		if out == "" {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, errEmpty)
			continue
		}
		return out, nil
	}

	return "", &GenerationError{
		Op:  op,
		Err: fmt.Errorf("failed after %d attempts: %w", c.opts.MaxRetries+1, lastErr),
	}
}
