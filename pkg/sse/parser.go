package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const (
	// DataPrefix marks a data-bearing line. The trailing space is part of the
	// literal: "data:" lines without it are ignored.
	DataPrefix = "data: "

	// DoneSentinel is the payload of the stream terminator line.
	DoneSentinel = "[DONE]"
)

// ErrMalformedPayload is returned by ParseLine when a data line carries JSON
// that cannot be decoded. Callers treat it as an unrecoverable framing error
// for the rest of the stream.
var ErrMalformedPayload = errors.New("malformed event payload")

// streamPayload is the subset of a chat.completion.chunk the pipeline reads,
// plus the in-band error object some providers emit mid-stream.
type streamPayload struct {
	openai.ChatCompletionStreamResponse

	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ParseLine classifies one decoded line. Rules, in order:
//
//  1. lines without the "data: " prefix are ignored
//  2. a payload equal to "[DONE]" (after trimming) is the terminator
//  3. otherwise the payload is JSON and the delta is choices[0].delta.content;
//     an absent or empty field makes the line ignored, not an error. This
//     includes payloads carrying an error object, whose message is returned
//     in Event.Message
//  4. undecodable JSON yields a KindMalformed event and ErrMalformedPayload
func ParseLine(line string) (Event, error) {
	payload, ok := strings.CutPrefix(line, DataPrefix)
	if !ok {
		return Event{Kind: KindIgnored}, nil
	}

	payload = strings.TrimSpace(payload)
	switch payload {
	case DoneSentinel:
		return Event{Kind: KindTerminator}, nil
	case "":
		// Bare "data: " keep-alive.
		return Event{Kind: KindIgnored}, nil
	}

	var chunk streamPayload
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Event{Kind: KindMalformed}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if chunk.Error != nil {
		msg := chunk.Error.Message
		if msg == "" {
			msg = chunk.Error.Type
		}
		return Event{Kind: KindIgnored, Message: msg}, nil
	}

	if len(chunk.Choices) == 0 {
		return Event{Kind: KindIgnored}, nil
	}

	choice := chunk.Choices[0]
	ev := Event{
		Kind:         KindIgnored,
		FinishReason: string(choice.FinishReason),
	}

	if choice.Delta.Content != "" {
		ev.Kind = KindDelta
		ev.Delta = choice.Delta.Content
	}

	return ev, nil
}
