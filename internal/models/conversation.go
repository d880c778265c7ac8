// ABOUTME: Conversation and Message model the dialogue held with one lead
// ABOUTME: Messages are immutable and ordered by creation for prompt history
package models

import "time"

// Conversation is the single dialogue associated with one lead
type Conversation struct {
	ID            int64             `json:"id"`
	LeadID        int64             `json:"lead_id"`
	State         ConversationState `json:"state"`
	MessageCount  int               `json:"message_count"` // bot-authored only
	LastMessageAt *time.Time        `json:"last_message_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Message is one immutable utterance in a conversation
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// LastUserMessage returns the most recent user message and whether any bot
// message follows it
func LastUserMessage(history []Message) (msg *Message, answered bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return &history[i], answered
		}
		answered = true
	}
	return nil, answered
}
