package stream_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/koinonia/pkg/llm"
	"github.com/papercomputeco/koinonia/pkg/stream"
)

const doneLine = "data: [DONE]\n\n"

// deltaLine renders one OpenAI-style chunk carrying content.
func deltaLine(content string) string {
	b, _ := json.Marshal(content)
	return `data: {"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":` + string(b) + `}}]}` + "\n\n"
}

func testRequest() stream.Request {
	return stream.Request{
		Model:    "test-model",
		Messages: []llm.Message{llm.NewTextMessage(llm.RoleUser, "Bonjour ?")},
	}
}

// chunkReader hands out exactly one chunk per Read call, then io.EOF.
type chunkReader struct {
	chunks [][]byte
	closed atomic.Bool
}

func newChunkReader(chunks ...string) *chunkReader {
	r := &chunkReader{}
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}

	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error {
	r.closed.Store(true)
	return nil
}

// errAfterReader yields its chunks then fails with err.
type errAfterReader struct {
	*chunkReader
	err error
}

func (r *errAfterReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	return r.chunkReader.Read(p)
}

// fakeTransport returns a fixed body or error and records the request.
type fakeTransport struct {
	body io.ReadCloser
	err  error

	mu      sync.Mutex
	opened  int
	lastReq stream.Request
}

func (f *fakeTransport) Open(_ context.Context, req stream.Request) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.opened++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func (f *fakeTransport) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// blockingTransport blocks in Open until ctx is done.
type blockingTransport struct{}

func (blockingTransport) Open(ctx context.Context, _ stream.Request) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
