package chat

import "errors"

var (
	// ErrEmptyTurn is returned by Submit when the text is blank.
	ErrEmptyTurn = errors.New("empty turn")

	// ErrEmptyTitle is returned by Rename when the title is blank.
	ErrEmptyTitle = errors.New("empty title")

	// ErrMissingUser is returned by Submit when a new conversation would be
	// created without an owner.
	ErrMissingUser = errors.New("user id is required to start a conversation")

	// ErrPersistence wraps every storage failure surfaced by the service.
	ErrPersistence = errors.New("persistence failure")
)
