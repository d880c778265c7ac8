// ABOUTME: Conversation and message persistence
// ABOUTME: History is ordered by message id so equal timestamps keep insertion order
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/harper/dmagent/internal/models"
	"github.com/harper/dmagent/internal/storage"
)

// GetConversation returns nil when the lead has no conversation
func (s *Store) GetConversation(ctx context.Context, leadID int64) (*models.Conversation, error) {
	var (
		conv models.Conversation
		last sql.NullTime
	)
	err := s.queryRow(ctx, `
		SELECT id, lead_id, state, message_count, last_message_at, created_at
		FROM conversations WHERE lead_id = ?
	`, leadID).Scan(&conv.ID, &conv.LeadID, &conv.State, &conv.MessageCount, &last, &conv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get conversation", err)
	}
	conv.LastMessageAt = nullTime(last)
	return &conv, nil
}

// UpdateConversationState sets the state of the lead's conversation
func (s *Store) UpdateConversationState(ctx context.Context, leadID int64, state models.ConversationState) error {
	if !state.Valid() {
		return &storage.StoreError{Op: "update conversation state", Err: errors.New("invalid state")}
	}
	return s.execOne(ctx, "update conversation state",
		`UPDATE conversations SET state = ? WHERE lead_id = ?`, state, leadID)
}

// IncrementMessageCount counts one bot-authored message and returns the new count
func (s *Store) IncrementMessageCount(ctx context.Context, leadID int64) (int, error) {
	return s.returningInt(ctx, "increment message count", `
		UPDATE conversations SET message_count = message_count + 1
		WHERE lead_id = ?
		RETURNING message_count
	`, leadID)
}

// AppendMessage stores an immutable message and stamps the conversation's last activity
func (s *Store) AppendMessage(ctx context.Context, conversationID int64, role models.Role, content string) (*models.Message, error) {
	const op = "append message"
	if !role.Valid() {
		return nil, &storage.StoreError{Op: op, Err: errors.New("invalid role")}
	}
	now := s.now().UTC()

	var msg *models.Message
	err := s.inTx(ctx, op, func(tx *sql.Tx) error {
		if err := s.txExecOne(ctx, tx,
			`UPDATE conversations SET last_message_at = ? WHERE id = ?`, now, conversationID); err != nil {
			return err
		}
		var err error
		msg, err = s.insertMessage(ctx, tx, conversationID, role, content, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// RecordTurn stores the message, touches the conversation and the lead, and
// commits all of it or nothing
func (s *Store) RecordTurn(ctx context.Context, turn storage.Turn) (*models.Message, int, error) {
	const op = "record turn"
	switch {
	case !turn.Role.Valid():
		return nil, 0, &storage.StoreError{Op: op, Err: errors.New("invalid role")}
	case turn.State != 0 && !turn.State.Valid():
		return nil, 0, &storage.StoreError{Op: op, Err: errors.New("invalid state")}
	case turn.Status != 0 && !turn.Status.Valid():
		return nil, 0, &storage.StoreError{Op: op, Err: errors.New("invalid status")}
	}
	now := s.now().UTC()

	var (
		msg   *models.Message
		score int
	)
	err := s.inTx(ctx, op, func(tx *sql.Tx) error {
		conv := "last_message_at = ?"
		convArgs := []any{now}
		if turn.CountMessage {
			conv += ", message_count = message_count + 1"
		}
		if turn.State != 0 {
			conv += ", state = ?"
			convArgs = append(convArgs, turn.State)
		}
		convArgs = append(convArgs, turn.ConversationID, turn.LeadID)
		if err := s.txExecOne(ctx, tx,
			`UPDATE conversations SET `+conv+` WHERE id = ? AND lead_id = ?`, convArgs...); err != nil {
			return err
		}

		var err error
		msg, err = s.insertMessage(ctx, tx, turn.ConversationID, turn.Role, turn.Content, now)
		if err != nil {
			return err
		}

		lead := "confidence_score = confidence_score + ?, updated_at = ?"
		leadArgs := []any{turn.ScoreDelta, now}
		if turn.Status != 0 {
			lead += ", status = ?"
			leadArgs = append(leadArgs, turn.Status)
		}
		leadArgs = append(leadArgs, turn.LeadID)
		err = tx.QueryRowContext(ctx, s.dialect.Rebind(
			`UPDATE leads SET `+lead+` WHERE id = ? RETURNING confidence_score`), leadArgs...).Scan(&score)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return msg, score, nil
}

// Transition moves the conversation and its lead to a new pair of states atomically
func (s *Store) Transition(ctx context.Context, leadID int64, state models.ConversationState, status models.LeadStatus) error {
	const op = "transition"
	if !state.Valid() || !status.Valid() {
		return &storage.StoreError{Op: op, Err: errors.New("invalid state")}
	}
	now := s.now().UTC()
	return s.inTx(ctx, op, func(tx *sql.Tx) error {
		if err := s.txExecOne(ctx, tx,
			`UPDATE conversations SET state = ? WHERE lead_id = ?`, state, leadID); err != nil {
			return err
		}
		return s.txExecOne(ctx, tx,
			`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`, status, now, leadID)
	})
}

func (s *Store) insertMessage(ctx context.Context, tx *sql.Tx, conversationID int64, role models.Role, content string, at time.Time) (*models.Message, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.dialect.Rebind(`
		INSERT INTO messages (conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), conversationID, role, content, at).Scan(&id)
	if err != nil {
		return nil, err
	}
	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}, nil
}

// History returns every message of a conversation in creation order
func (s *Store) History(ctx context.Context, conversationID int64) ([]models.Message, error) {
	rows, err := s.query(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY id ASC
	`, conversationID)
	if err != nil {
		return nil, wrap("history", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, wrap("history", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, wrap("history", rows.Err())
}
