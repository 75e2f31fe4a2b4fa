// Package sse provides a minimal, purpose-built decoder for the line-oriented
// SSE (Server-Sent Events) framing used by streaming chat-completion providers.
//
// It is split in two stages: a Decoder that reassembles "\n" terminated lines
// from byte chunks delivered at arbitrary boundaries, and ParseLine, which
// classifies a single line as a delta, the stream terminator, or noise.
//
// This package intentionally does NOT implement the full SSE event model
// (multi-line data fields, "event:" and "id:" fields, retry). Completion
// providers emit one JSON object per "data: " line and that is all the chat
// pipeline consumes.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Kind classifies a parsed line.
type Kind int

const (
	// KindIgnored is a line that carries nothing for the accumulator: blank
	// lines, comments, keep-alives, other fields, or data events without
	// a content delta. In-band provider error objects are ignored too; their
	// text is reported in Event.Message.
	KindIgnored Kind = iota

	// KindDelta is a data event carrying an incremental text fragment.
	KindDelta

	// KindTerminator is the "[DONE]" sentinel signalling normal end of stream.
	KindTerminator

	// KindMalformed is a data event whose JSON payload could not be decoded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindIgnored:
		return "ignored"
	case KindDelta:
		return "delta"
	case KindTerminator:
		return "terminator"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Event is the interpretation of one decoded line.
type Event struct {
	Kind Kind

	// Delta is the text fragment read from choices[0].delta.content.
	// Only set for KindDelta.
	Delta string

	// Message is the text of an in-band provider error object. The event is
	// still KindIgnored: the stream goes on.
	Message string

	// FinishReason is the provider's finish_reason for the first choice, if
	// the chunk carried one.
	FinishReason string
}
