package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/papercomputeco/koinonia/pkg/stream"
)

// DoneChunk is the stream terminator line.
const DoneChunk = "data: [DONE]\n\n"

// DeltaChunk renders one OpenAI-style streaming chunk carrying content.
func DeltaChunk(content string) string {
	b, _ := json.Marshal(content)
	return `data: {"object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":` + string(b) + `}}]}` + "\n\n"
}

// Script describes the response to one Open call.
type Script struct {
	// Err is returned by Open instead of a body.
	Err error

	// Chunks are written to the body in order, one write each.
	Chunks []string

	// Hold keeps the body open after the chunks until the request context is
	// canceled.
	Hold bool
}

// ScriptedTransport is a stream.Transport answering each Open with the next
// queued Script and recording every request.
type ScriptedTransport struct {
	mu       sync.Mutex
	scripts  []Script
	requests []stream.Request
}

func NewScriptedTransport(scripts ...Script) *ScriptedTransport {
	return &ScriptedTransport{scripts: scripts}
}

// Push queues another script.
func (t *ScriptedTransport) Push(s Script) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scripts = append(t.scripts, s)
}

// Requests returns every request seen so far.
func (t *ScriptedTransport) Requests() []stream.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]stream.Request(nil), t.requests...)
}

func (t *ScriptedTransport) Open(ctx context.Context, req stream.Request) (io.ReadCloser, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	if len(t.scripts) == 0 {
		t.mu.Unlock()
		return nil, errors.New("scripted transport: no script queued")
	}
	s := t.scripts[0]
	t.scripts = t.scripts[1:]
	t.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	pr, pw := io.Pipe()
	go func() {
		for _, c := range s.Chunks {
			if _, err := io.WriteString(pw, c); err != nil {
				return
			}
		}

		if s.Hold {
			<-ctx.Done()
			_ = pw.CloseWithError(ctx.Err())
			return
		}
		_ = pw.Close()
	}()

	return pr, nil
}
