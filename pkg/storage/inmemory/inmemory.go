// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/koinonia/pkg/llm"
	"github.com/papercomputeco/koinonia/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding both maps
	mu sync.RWMutex

	conversations map[string]*llm.Conversation

	// messages holds each conversation's messages in insertion order
	messages map[string][]*llm.Message

	// now is the clock, replaceable in tests
	now func() time.Time
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		conversations: make(map[string]*llm.Conversation),
		messages:      make(map[string][]*llm.Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ListConversations returns copies of the user's conversations, most recently
// updated first.
func (d *Driver) ListConversations(_ context.Context, userID string) ([]*llm.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*llm.Conversation, 0)
	for _, c := range d.conversations {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}

	slices.SortFunc(out, func(a, b *llm.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return out, nil
}

// GetConversation returns a copy of one conversation.
func (d *Driver) GetConversation(_ context.Context, conversationID string) (*llm.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.conversations[conversationID]
	if !ok {
		return nil, storage.NotFoundError{ID: conversationID}
	}

	cp := *c
	return &cp, nil
}

// ListMessages returns copies of the conversation's messages in order.
func (d *Driver) ListMessages(_ context.Context, conversationID string) ([]*llm.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.conversations[conversationID]; !ok {
		return nil, storage.NotFoundError{ID: conversationID}
	}

	msgs := d.messages[conversationID]
	out := make([]*llm.Message, 0, len(msgs))
	for _, m := range msgs {
		cp := *m
		out = append(out, &cp)
	}

	// Stable: equal timestamps keep insertion order.
	slices.SortStableFunc(out, func(a, b *llm.Message) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return out, nil
}

// CreateConversation creates a conversation owned by userID.
func (d *Driver) CreateConversation(_ context.Context, userID, title string) (string, error) {
	if userID == "" {
		return "", errors.New("cannot create conversation without a user")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	c := &llm.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.conversations[c.ID] = c

	return c.ID, nil
}

// AppendMessage appends a message to an existing conversation.
func (d *Driver) AppendMessage(_ context.Context, conversationID, role, content string) error {
	if err := storage.ValidateMessage(conversationID, role); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conversations[conversationID]
	if !ok {
		return storage.NotFoundError{ID: conversationID}
	}

	now := d.now()
	d.messages[conversationID] = append(d.messages[conversationID], &llm.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	})
	c.UpdatedAt = now

	return nil
}

// RenameConversation replaces the conversation title.
func (d *Driver) RenameConversation(_ context.Context, conversationID, title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conversations[conversationID]
	if !ok {
		return storage.NotFoundError{ID: conversationID}
	}

	c.Title = title
	c.UpdatedAt = d.now()

	return nil
}

// DeleteConversation removes a conversation and its messages.
func (d *Driver) DeleteConversation(_ context.Context, conversationID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[conversationID]; !ok {
		return storage.NotFoundError{ID: conversationID}
	}

	delete(d.conversations, conversationID)
	delete(d.messages, conversationID)

	return nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
