// ABOUTME: Per-lead conversation state machine: opening, reply handling, exits
// ABOUTME: Scores inbound replies and records rejections with the kill-switch guard
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harper/dmagent/internal/llm"
	"github.com/harper/dmagent/internal/metrics"
	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/notify"
	"github.com/harper/dmagent/internal/scoring"
	"github.com/harper/dmagent/internal/storage"
)

// ExitMessage is sent once after a rejection
const ExitMessage = "Tushundim, vaqt ajratganingiz uchun rahmat."

// SoftTransitionAfter is the bot message count from which replies move to SOFT_TRANSITION
const SoftTransitionAfter = 3

var (
	// ErrUnknownLead is returned for handles that are not in the store
	ErrUnknownLead = errors.New("unknown lead")
	// ErrAlreadyOpened is returned by Open when the conversation has left NEW
	ErrAlreadyOpened = errors.New("conversation already opened")
)

// Generator is the text-generation collaborator
type Generator interface {
	GenerateOpening(ctx context.Context, in llm.OpeningInput) (string, error)
	GenerateReply(ctx context.Context, in llm.ReplyInput) (string, error)
}

// RejectionGuard tracks rejection streaks for the kill-switch
type RejectionGuard interface {
	RecordRejection(ctx context.Context, lead models.Lead) (bool, error)
	RecordEngagement(ctx context.Context, leadID int64) error
}

// Deliver sends text to the lead. kind is one of the metrics message kinds.
// A non-nil error means nothing was delivered.
type Deliver func(ctx context.Context, kind, text string) error

// Config tunes scoring and exits
type Config struct {
	Rules          scoring.Rules
	ScoreThreshold int
}

// DefaultConfig uses the stock scoring rules and a zero threshold
func DefaultConfig() Config {
	return Config{Rules: scoring.DefaultRules()}
}

// Option customises a Manager
type Option func(*Manager)

// WithClock overrides time.Now for time-of-day selection
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithNotifier publishes lifecycle events to n
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// Manager drives every lead's conversation. It holds no per-lead state;
// each call loads what it needs from the store.
type Manager struct {
	store    storage.Store
	gen      Generator
	guard    RejectionGuard
	cfg      Config
	now      func() time.Time
	notifier notify.Notifier
	logger   *zap.Logger
}

// NewManager wires the state machine to its collaborators
func NewManager(store storage.Store, gen Generator, guard RejectionGuard, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		gen:      gen,
		guard:    guard,
		cfg:      cfg,
		now:      time.Now,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.notifier == nil {
		m.notifier = notify.Nop{}
	}
	return m
}

func (m *Manager) load(ctx context.Context, handle string) (*models.Lead, *models.Conversation, error) {
	lead, err := m.store.GetLeadByHandle(ctx, handle)
	if err != nil {
		return nil, nil, err
	}
	if lead == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownLead, handle)
	}
	conv, err := m.store.GetConversation(ctx, lead.ID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, fmt.Errorf("%w: %s has no conversation", ErrUnknownLead, handle)
	}
	return lead, conv, nil
}

// OpenResult describes a delivered opening message
type OpenResult struct {
	Text     string
	Fallback bool
}

// Open generates the first message, hands it to deliver and, once delivered,
// moves the conversation NEW -> FIRST_SENT. A generation failure uses the
// canned time-of-day opener. A delivery failure leaves everything untouched.
// A delivered opening is recorded even if ctx is cancelled meanwhile.
func (m *Manager) Open(ctx context.Context, handle string, deliver Deliver) (*OpenResult, error) {
	lead, conv, err := m.load(ctx, handle)
	if err != nil {
		return nil, err
	}
	if conv.State != models.StateNew {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyOpened, lead.Handle, conv.State)
	}

	tod := llm.TimeOfDayAt(m.now())
	res := &OpenResult{}
	res.Text, err = m.gen.GenerateOpening(ctx, llm.OpeningInput{
		Bio:           lead.Bio,
		LastPostTopic: lead.LastPostExcerpt,
		Niche:         lead.Niche,
		TimeOfDay:     tod,
	})
	if err != nil || res.Text == "" {
		m.logger.Warn("opening generation failed, using fallback",
			zap.String("handle", lead.Handle), zap.Error(err))
		metrics.RecordGenerationFallback("opening")
		res.Text = llm.FallbackOpening(tod)
		res.Fallback = true
	}

	if err := deliver(ctx, metrics.KindOpening, res.Text); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	if _, _, err := m.store.RecordTurn(ctx, storage.Turn{
		LeadID:         lead.ID,
		ConversationID: conv.ID,
		Role:           models.RoleBot,
		Content:        res.Text,
		CountMessage:   true,
		State:          models.StateFirstSent,
		Status:         models.LeadContacted,
	}); err != nil {
		return nil, err
	}

	m.logger.Info("opening sent", zap.String("handle", lead.Handle), zap.Bool("fallback", res.Fallback))
	m.emit(ctx, notify.LeadContacted, lead, lead.ConfidenceScore)
	return res, nil
}

// ShouldRespond is the pre-reply gate. Terminal conversations are skipped
// as they are; a live conversation whose score fell below the threshold is
// exited first.
func (m *Manager) ShouldRespond(ctx context.Context, handle string) (bool, error) {
	lead, conv, err := m.load(ctx, handle)
	if errors.Is(err, ErrUnknownLead) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if conv.State.Terminal() {
		return false, nil
	}
	if lead.ConfidenceScore < m.cfg.ScoreThreshold {
		m.logger.Info("score below threshold, exiting",
			zap.String("handle", lead.Handle),
			zap.Int("score", lead.ConfidenceScore),
			zap.Int("threshold", m.cfg.ScoreThreshold))
		if err := m.exit(ctx, lead); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (m *Manager) exit(ctx context.Context, lead *models.Lead) error {
	if err := m.store.Transition(ctx, lead.ID, models.StateExited, models.LeadExited); err != nil {
		return err
	}
	m.emit(ctx, notify.LeadExited, lead, lead.ConfidenceScore)
	return nil
}

// ReplyKind says what, if anything, the caller should deliver
type ReplyKind uint8

const (
	// ReplyNone means send nothing
	ReplyNone ReplyKind = iota
	// ReplyMessage is a generated follow-up
	ReplyMessage
	// ReplyExit is the polite exit after a rejection
	ReplyExit
)

// Reply is the outcome of one inbound message
type Reply struct {
	Kind   ReplyKind
	Text   string
	Intent scoring.Intent
	Delta  int
	Score  int
	State  models.ConversationState
	// Tripped is set when this rejection paused the bot
	Tripped bool
	// Sent is set once Text was delivered and recorded
	Sent bool
	// Duplicate is set when the message was already stored and scored by an
	// earlier call that did not get an answer out
	Duplicate bool
}

// HandleReply records an inbound message, scores it and delivers the bot's
// answer through deliver. Terminal conversations are left untouched.
//
// The answer is recorded only after delivery. When the same text arrives
// again while still unanswered it is not stored or scored a second time;
// only the answer is retried. A delivery failure is returned with the Reply.
func (m *Manager) HandleReply(ctx context.Context, handle, text string, deliver Deliver) (*Reply, error) {
	lead, conv, err := m.load(ctx, handle)
	if err != nil {
		return nil, err
	}
	if conv.State.Terminal() {
		return &Reply{Kind: ReplyNone, State: conv.State}, nil
	}

	history, err := m.store.History(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	var prev *scoring.Classification
	if last, answered := models.LastUserMessage(history); last != nil {
		if !answered && last.Content == text {
			m.logger.Debug("inbound message already recorded, retrying answer", zap.String("handle", lead.Handle))
			reply := &Reply{
				Intent:    m.cfg.Rules.Classify(text).Intent(),
				Score:     lead.ConfidenceScore,
				State:     conv.State,
				Duplicate: true,
			}
			return m.answer(ctx, lead, conv, history, reply, deliver)
		}
		c := m.cfg.Rules.Classify(last.Content)
		prev = &c
	}

	c := m.cfg.Rules.Classify(text)
	delta := m.cfg.Rules.ScoreDeltaAfter(prev, c)
	turn := storage.Turn{
		LeadID:         lead.ID,
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        text,
		ScoreDelta:     delta,
		State:          models.StateQualifying,
	}
	switch {
	case c.IsRejection:
		turn.State = models.StateRejected
		turn.Status = models.LeadRejected
	case conv.MessageCount >= SoftTransitionAfter:
		turn.State = models.StateSoftTransition
	}

	userMsg, score, err := m.store.RecordTurn(ctx, turn)
	if err != nil {
		return nil, err
	}
	history = append(history, *userMsg)
	lead.ConfidenceScore = score
	metrics.RecordReplyScored(string(c.Intent()))

	m.logger.Info("reply scored",
		zap.String("handle", lead.Handle),
		zap.String("intent", string(c.Intent())),
		zap.Int("delta", delta),
		zap.Int("score", score))

	reply := &Reply{Intent: c.Intent(), Delta: delta, Score: score, State: turn.State}
	if c.IsRejection {
		return m.reject(ctx, lead, conv, reply, deliver)
	}

	if err := m.guard.RecordEngagement(ctx, lead.ID); err != nil {
		return nil, err
	}
	return m.answer(ctx, lead, conv, history, reply, deliver)
}

// answer generates, delivers and records the follow-up for the last inbound message
func (m *Manager) answer(ctx context.Context, lead *models.Lead, conv *models.Conversation, history []models.Message, reply *Reply, deliver Deliver) (*Reply, error) {
	text, err := m.gen.GenerateReply(ctx, llm.ReplyInput{
		History:   history,
		Lead:      *lead,
		State:     reply.State,
		TimeOfDay: llm.TimeOfDayAt(m.now()),
	})
	if err != nil || text == "" {
		m.logger.Warn("reply generation failed, not responding",
			zap.String("handle", lead.Handle), zap.Error(err))
		metrics.RecordGenerationFallback("reply")
		reply.Kind = ReplyNone
		return reply, nil
	}

	reply.Kind = ReplyMessage
	reply.Text = text
	if err := m.send(ctx, lead, conv, metrics.KindReply, text, true, deliver); err != nil {
		return reply, err
	}
	reply.Sent = true
	return reply, nil
}

// reject runs after the inbound turn has marked the lead rejected. The exit
// message is withheld when this rejection trips the kill-switch.
func (m *Manager) reject(ctx context.Context, lead *models.Lead, conv *models.Conversation, reply *Reply, deliver Deliver) (*Reply, error) {
	tripped, err := m.guard.RecordRejection(ctx, *lead)
	if err != nil {
		return nil, err
	}

	m.emit(ctx, notify.LeadRejected, lead, reply.Score)
	reply.Kind = ReplyExit
	reply.Text = ExitMessage
	reply.Tripped = tripped
	if tripped {
		m.logger.Warn("kill-switch tripped, exit message withheld", zap.String("handle", lead.Handle))
		return reply, nil
	}

	if err := m.send(ctx, lead, conv, metrics.KindExit, ExitMessage, false, deliver); err != nil {
		return reply, err
	}
	reply.Sent = true
	return reply, nil
}

// send delivers a bot message and records it. Only follow-ups count toward
// message_count; the exit does not.
func (m *Manager) send(ctx context.Context, lead *models.Lead, conv *models.Conversation, kind, text string, counted bool, deliver Deliver) error {
	if err := deliver(ctx, kind, text); err != nil {
		return err
	}
	_, _, err := m.store.RecordTurn(context.WithoutCancel(ctx), storage.Turn{
		LeadID:         lead.ID,
		ConversationID: conv.ID,
		Role:           models.RoleBot,
		Content:        text,
		CountMessage:   counted,
	})
	return err
}

// MarkConverted applies the external conversion. Converting twice is a no-op.
func (m *Manager) MarkConverted(ctx context.Context, handle string) error {
	lead, conv, err := m.load(ctx, handle)
	if err != nil {
		return err
	}
	if conv.State == models.StateConverted {
		return nil
	}
	if err := m.store.Transition(ctx, lead.ID, models.StateConverted, models.LeadConverted); err != nil {
		return err
	}
	m.logger.Info("lead converted", zap.String("handle", lead.Handle), zap.String("from", conv.State.String()))
	m.emit(ctx, notify.LeadConverted, lead, lead.ConfidenceScore)
	return nil
}

func (m *Manager) emit(ctx context.Context, typ notify.EventType, lead *models.Lead, score int) {
	_ = m.notifier.Notify(ctx, notify.Event{
		Type:   typ,
		Handle: lead.Handle,
		LeadID: lead.ID,
		Score:  score,
		At:     m.now(),
	})
}
