// ABOUTME: Data-access contract shared by the embedded and networked backends
// ABOUTME: Defines the Store interface, StoreError and soft not-found semantics
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harper/dmagent/internal/models"
)

// ErrNotFound is returned by mutations that target a row which does not exist.
// Lookups by unique key return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// StoreError reports a persistence failure. It is fatal to the current loop
// iteration and retried on the next cycle.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err wraps a StoreError
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// LeadFilter narrows ListLeads. A zero Status lists every lead; Limit <= 0 is unbounded.
type LeadFilter struct {
	Status models.LeadStatus
	Limit  int
}

// Turn is one stored message plus the bookkeeping it completes. Zero State
// and Status leave the current values in place.
type Turn struct {
	LeadID         int64
	ConversationID int64
	Role           models.Role
	Content        string
	// CountMessage increments message_count; set for delivered bot messages
	CountMessage bool
	ScoreDelta   int
	State        models.ConversationState
	Status       models.LeadStatus
}

// LeadStore persists leads
type LeadStore interface {
	// UpsertLead creates the lead and its conversation. A duplicate handle is
	// a no-op that still yields the existing lead's id.
	UpsertLead(ctx context.Context, in models.NewLead) (int64, error)
	GetLeadByHandle(ctx context.Context, handle string) (*models.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]models.Lead, error)
	CountLeadsByStatus(ctx context.Context) (map[models.LeadStatus]int, error)
	UpdateLeadStatus(ctx context.Context, leadID int64, status models.LeadStatus) error
	// AddLeadScore accumulates delta onto the confidence score and returns the new score
	AddLeadScore(ctx context.Context, leadID int64, delta int) (int, error)
	IncrementLeadRejections(ctx context.Context, leadID int64) (int, error)
	ResetLeadRejections(ctx context.Context, leadID int64) error
}

// ConversationStore persists conversations and their messages
type ConversationStore interface {
	GetConversation(ctx context.Context, leadID int64) (*models.Conversation, error)
	UpdateConversationState(ctx context.Context, leadID int64, state models.ConversationState) error
	IncrementMessageCount(ctx context.Context, leadID int64) (int, error)
	AppendMessage(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error)
	// RecordTurn applies a Turn in one transaction and returns the stored
	// message with the lead's score afterwards
	RecordTurn(ctx context.Context, turn Turn) (*models.Message, int, error)
	// Transition sets the conversation state and lead status together
	Transition(ctx context.Context, leadID int64, state models.ConversationState, status models.LeadStatus) error
	// History returns every message of a conversation in creation order
	History(ctx context.Context, conversationID int64) ([]models.Message, error)
}

// BotStateStore persists the singleton bot state row
type BotStateStore interface {
	BotState(ctx context.Context) (*models.BotState, error)
	// SetPausedUntil sets or, with nil, clears the kill-switch pause
	SetPausedUntil(ctx context.Context, until *time.Time) error
	// IncrementDMCount counts one sent DM on day. The first increment on a new
	// day sets the counter to 1. Returns the new count.
	IncrementDMCount(ctx context.Context, day string) (int, error)
	IncrementBotRejections(ctx context.Context) (int, error)
	ResetBotRejections(ctx context.Context) error
	SetAccountCreatedDate(ctx context.Context, day string) error
	SavePlatformSession(ctx context.Context, session string) error
}

// Store is the full data-access interface used by the core
type Store interface {
	LeadStore
	ConversationStore
	BotStateStore
	Ping(ctx context.Context) error
	Close() error
}
