// Package llm holds the provider-agnostic conversation model shared by the
// stream pipeline, the chat service, and the storage backends.
package llm

import "time"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
// Content is plain text: the chat pipeline only ever produces and persists text.
type Message struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at,omitzero"`
}

// NewTextMessage creates a transient message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: text,
	}
}

// IsPersistedRole reports whether messages with this role are stored.
// System prompts are prepended per request and never written.
func IsPersistedRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}
