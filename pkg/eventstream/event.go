package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnCompleted is emitted after a completed turn is persisted.
	EventTypeTurnCompleted = "koinonia.turn.completed"
)

// TurnCompletedEvent is a transport-neutral event payload for a chat turn
// whose assistant answer has been stored.
type TurnCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	SessionID      string `json:"session_id"`
	Model          string `json:"model,omitempty"`

	Stream TurnStreamMeta `json:"stream"`

	UserMessage      string `json:"user_message"`
	AssistantMessage string `json:"assistant_message"`
}

// TurnStreamMeta captures how the answer was streamed.
type TurnStreamMeta struct {
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMs   int64     `json:"duration_ms"`
	Deltas       int       `json:"deltas"`
	Partial      bool      `json:"partial"`
	FinishReason string    `json:"finish_reason,omitempty"`
}

// NewTurnCompletedEvent stamps a v1 event with a fresh id and emission time.
func NewTurnCompletedEvent() *TurnCompletedEvent {
	return &TurnCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
	}
}
