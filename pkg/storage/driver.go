// Package storage defines the conversation persistence contract shared by
// every backend.
package storage

import (
	"context"

	"github.com/papercomputeco/koinonia/pkg/llm"
)

// Driver persists conversations and their ordered messages.
//
// A missing conversation yields a NotFoundError. Messages of a conversation
// are returned ordered by creation time, ties broken by insertion order.
// Deleting a conversation deletes its messages.
type Driver interface {
	// ListConversations returns the user's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, userID string) ([]*llm.Conversation, error)

	// GetConversation returns one conversation.
	GetConversation(ctx context.Context, conversationID string) (*llm.Conversation, error)

	// ListMessages returns the conversation's messages in order.
	ListMessages(ctx context.Context, conversationID string) ([]*llm.Message, error)

	// CreateConversation creates a conversation and returns its id.
	// An empty title leaves it unset.
	CreateConversation(ctx context.Context, userID, title string) (string, error)

	// AppendMessage appends a message and bumps the conversation's updated time.
	AppendMessage(ctx context.Context, conversationID, role, content string) error

	// RenameConversation replaces the title.
	RenameConversation(ctx context.Context, conversationID, title string) error

	// DeleteConversation removes the conversation and its messages.
	DeleteConversation(ctx context.Context, conversationID string) error

	// Close releases any resources held by the driver.
	Close() error
}
