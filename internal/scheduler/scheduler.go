// ABOUTME: The single sequential control loop: lead intake, inbox, idle wait
// ABOUTME: Platform failures skip the item, store failures end the cycle and back off
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/conversation"
	"github.com/harper/dmagent/internal/metrics"
	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/platform"
	"github.com/harper/dmagent/internal/storage"
	"github.com/harper/dmagent/internal/util"
)

// Gate is the send budget and pause check
type Gate interface {
	CanSend(ctx context.Context) (bool, error)
	IsPaused(ctx context.Context) (bool, error)
	RecordSend(ctx context.Context) (int, error)
}

// Conversations is the state machine the loop drives
type Conversations interface {
	Open(ctx context.Context, handle string, deliver conversation.Deliver) (*conversation.OpenResult, error)
	ShouldRespond(ctx context.Context, handle string) (bool, error)
	HandleReply(ctx context.Context, handle, text string, deliver conversation.Deliver) (*conversation.Reply, error)
}

// Session is the platform login the loop keeps alive between passes
type Session interface {
	LoggedIn() bool
	Login(ctx context.Context) error
}

// LeadLister yields leads awaiting their opening
type LeadLister interface {
	ListLeads(ctx context.Context, filter storage.LeadFilter) ([]models.Lead, error)
}

// Sleeper waits d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Deps are the loop's collaborators
type Deps struct {
	Leads         LeadLister
	Conversations Conversations
	Gate          Gate
	Messenger     platform.Messenger
	// Session is optional; when set, a dropped login is restored before each pass
	Session Session
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithPacing overrides the default delays
func WithPacing(p Pacing) Option {
	return func(s *Scheduler) { s.pacing = p }
}

// WithRetryPolicy overrides the default retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Scheduler) { s.retry = p }
}

// WithSleeper replaces the context-aware sleep
func WithSleeper(fn Sleeper) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// WithJitter replaces the random range picker
func WithJitter(fn func(lo, hi time.Duration) time.Duration) Option {
	return func(s *Scheduler) { s.jitter = fn }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// Scheduler owns the loop. Run it from one goroutine at a time.
type Scheduler struct {
	deps   Deps
	pacing Pacing
	retry  RetryPolicy
	sleep  Sleeper
	jitter func(lo, hi time.Duration) time.Duration
	logger *zap.Logger
}

// New builds a scheduler
func New(deps Deps, opts ...Option) *Scheduler {
	s := &Scheduler{
		deps:   deps,
		pacing: DefaultPacing(),
		retry:  DefaultRetryPolicy(),
		sleep:  util.Sleep,
		jitter: util.Between,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Run loops until ctx is cancelled or a fatal error occurs. Cancellation
// returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started")
	defer s.logger.Info("scheduler stopped")

	for {
		wait, err := s.Cycle(ctx)
		if err != nil {
			switch s.retry.Decide(ctx, err) {
			case Stop:
				return nil
			case Abort:
				s.logger.Error("cycle failed, aborting", zap.Error(err))
				return err
			}
			metrics.RecordCycleError()
			s.logger.Error("cycle failed, backing off", zap.Error(err), zap.Duration("backoff", s.retry.Backoff))
			wait = s.retry.Backoff
		}
		if err := s.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// Cycle runs one iteration and returns how long to wait before the next
func (s *Scheduler) Cycle(ctx context.Context) (time.Duration, error) {
	log := s.logger.With(zap.String("cycle", uuid.NewString()))

	paused, err := s.deps.Gate.IsPaused(ctx)
	if err != nil {
		return 0, err
	}
	if paused {
		log.Info("kill-switch active, skipping cycle", zap.Duration("backoff", s.pacing.PausedBackoff))
		return s.pacing.PausedBackoff, nil
	}

	if err := s.intake(ctx, log); err != nil {
		return 0, err
	}
	if err := s.inbox(ctx, log); err != nil {
		return 0, err
	}

	idle := s.jitter(s.pacing.IdleMin, s.pacing.IdleMax)
	log.Debug("cycle complete", zap.Duration("idle", idle))
	return idle, nil
}

// ensureSession logs in again when the platform dropped the session. It
// reports false when the login failed and the pass should be skipped.
func (s *Scheduler) ensureSession(ctx context.Context, log *zap.Logger) (bool, error) {
	if s.deps.Session == nil || s.deps.Session.LoggedIn() {
		return true, nil
	}
	log.Info("platform session lost, logging in again")
	if err := s.deps.Session.Login(ctx); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if platform.IsPlatformError(err) {
			metrics.RecordPlatformError("login")
			log.Warn("login failed, skipping pass", zap.Error(err))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Scheduler) intake(ctx context.Context, log *zap.Logger) error {
	if ok, err := s.ensureSession(ctx, log); !ok {
		return err
	}
	leads, err := s.deps.Leads.ListLeads(ctx, storage.LeadFilter{Status: models.LeadNew})
	if err != nil {
		return err
	}
	if len(leads) == 0 {
		return nil
	}
	log.Info("intake pass", zap.Int("leads", len(leads)))

	for i, lead := range leads {
		ok, err := s.deps.Gate.CanSend(ctx)
		if err != nil {
			return err
		}
		if !ok {
			log.Info("send budget exhausted, ending intake pass", zap.Int("remaining", len(leads)-i))
			return nil
		}

		_, err = s.deps.Conversations.Open(ctx, lead.Handle, s.deliver(lead.Handle, log))
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case platform.IsPlatformError(err):
			metrics.RecordPlatformError("send_message")
			log.Warn("opening not delivered, skipping lead", zap.String("handle", lead.Handle), zap.Error(err))
		case errors.Is(err, conversation.ErrAlreadyOpened), errors.Is(err, conversation.ErrUnknownLead):
			log.Warn("skipping lead", zap.String("handle", lead.Handle), zap.Error(err))
			continue
		default:
			return err
		}

		if i < len(leads)-1 {
			if err := s.sleep(ctx, s.jitter(s.pacing.LeadDelayMin, s.pacing.LeadDelayMax)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) inbox(ctx context.Context, log *zap.Logger) error {
	if ok, err := s.ensureSession(ctx, log); !ok {
		return err
	}
	msgs, err := s.deps.Messenger.FetchUnread(ctx)
	if err != nil {
		if platform.IsPlatformError(err) {
			metrics.RecordPlatformError("fetch_unread")
			log.Warn("inbox unavailable, skipping pass", zap.Error(err))
			return nil
		}
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	log.Info("inbox pass", zap.Int("messages", len(msgs)))

	for i, msg := range msgs {
		ok, err := s.deps.Gate.CanSend(ctx)
		if err != nil {
			return err
		}
		if !ok {
			log.Info("send budget exhausted, ending inbox pass", zap.Int("remaining", len(msgs)-i))
			return nil
		}

		if err := s.reply(ctx, msg, log); err != nil {
			return err
		}
		if i < len(msgs)-1 {
			if err := s.sleep(ctx, s.jitter(s.pacing.ReplyDelayMin, s.pacing.ReplyDelayMax)); err != nil {
				return err
			}
		}
	}
	return nil
}

// reply runs one inbound message through the state machine, which delivers
// whatever it produces. An undelivered answer is skipped.
func (s *Scheduler) reply(ctx context.Context, msg platform.InboundMessage, log *zap.Logger) error {
	handle := models.NormalizeHandle(msg.Handle)
	respond, err := s.deps.Conversations.ShouldRespond(ctx, handle)
	if err != nil || !respond {
		return err
	}

	r, err := s.deps.Conversations.HandleReply(ctx, handle, msg.Text, s.deliver(handle, log))
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrUnknownLead):
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case platform.IsPlatformError(err):
		metrics.RecordPlatformError("send_message")
		log.Warn("reply not delivered", zap.String("handle", handle), zap.Error(err))
		return nil
	default:
		return err
	}

	if r.Sent {
		log.Info("reply sent", zap.String("handle", handle), zap.String("state", r.State.String()), zap.Int("score", r.Score))
	}
	return nil
}

// deliver sends text and counts it against the daily budget. A counting
// failure is logged only; the message is already out.
func (s *Scheduler) deliver(handle string, log *zap.Logger) conversation.Deliver {
	return func(ctx context.Context, kind, text string) error {
		if err := s.deps.Messenger.SendMessage(ctx, handle, text); err != nil {
			return err
		}
		metrics.RecordMessageSent(kind)
		sent, err := s.deps.Gate.RecordSend(context.WithoutCancel(ctx))
		if err != nil {
			log.Error("failed to count sent message", zap.String("handle", handle), zap.Error(err))
			return nil
		}
		log.Debug("message sent", zap.String("handle", handle), zap.String("kind", kind), zap.Int("sent", sent))
		return nil
	}
}
