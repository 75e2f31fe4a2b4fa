package llm

import "time"

// Conversation is the durable record grouping an ordered list of messages
// owned by one user.
type Conversation struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// Title is the display title; empty means unset.
	Title string `json:"title,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transcript returns the role/content pairs of msgs in order, dropping store
// metadata. It is the payload shape sent upstream.
func Transcript(msgs []*Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, NewTextMessage(m.Role, m.Content))
	}
	return out
}
