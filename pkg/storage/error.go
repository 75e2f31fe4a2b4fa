package storage

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/koinonia/pkg/llm"
)

// ErrInvalidMessage is returned when a message cannot be stored as given.
var ErrInvalidMessage = errors.New("invalid message")

// NotFoundError is returned when a conversation doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "conversation not found"
	}

	return "conversation not found: " + e.ID
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// ValidateMessage checks the fields every backend requires before writing.
func ValidateMessage(conversationID, role string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: empty conversation id", ErrInvalidMessage)
	}
	if !llm.IsPersistedRole(role) {
		return fmt.Errorf("%w: unsupported role %q", ErrInvalidMessage, role)
	}
	return nil
}
