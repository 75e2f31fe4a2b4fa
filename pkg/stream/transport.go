package stream

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/credentials"
	"github.com/papercomputeco/koinonia/pkg/llm"
)

const (
	completionsPath = "/chat/completions"

	// maxErrorBody caps how much of a non-2xx body is kept for StatusError.
	maxErrorBody = 4096
)

// Request is one completion request: the full transcript to send upstream.
type Request struct {
	Model    string
	Messages []llm.Message
}

// Transport opens the streaming response for a request. The returned body
// delivers raw bytes at arbitrary chunk boundaries and must be closed by the
// caller. Canceling ctx must unblock a pending read.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// HTTPTransportConfig configures an HTTPTransport.
type HTTPTransportConfig struct {
	// BaseURL is the provider's API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// Tokens resolves the bearer token. Required.
	Tokens credentials.TokenSource

	// Client overrides the resty client, mostly for tests.
	Client *resty.Client

	Logger *zap.Logger
}

// HTTPTransport posts an OpenAI compatible streaming completion request and
// hands back the raw response body.
type HTTPTransport struct {
	client *resty.Client
	tokens credentials.TokenSource
	logger *zap.Logger
}

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(c *HTTPTransportConfig) *HTTPTransport {
	client := c.Client
	if client == nil {
		client = resty.New()
	}
	client.SetBaseURL(strings.TrimRight(c.BaseURL, "/"))

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPTransport{
		client: client,
		tokens: c.Tokens,
		logger: logger,
	}
}

// Open issues the request. A missing token yields ErrUnauthenticated without
// any network call; a non-2xx answer yields a *StatusError.
func (t *HTTPTransport) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	if t.tokens == nil {
		return nil, ErrUnauthenticated
	}

	token, err := t.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}

	body := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.Messages),
		Stream:   true,
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(completionsPath)
	if err != nil {
		return nil, fmt.Errorf("posting completion request: %w", err)
	}

	raw := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		defer raw.Close()

		data, _ := io.ReadAll(io.LimitReader(raw, maxErrorBody))
		t.logger.Debug("upstream rejected completion request",
			zap.Int("status", resp.StatusCode()),
			zap.String("model", req.Model),
		)
		return nil, &StatusError{
			Code: resp.StatusCode(),
			Body: strings.TrimSpace(string(data)),
		}
	}

	return raw, nil
}

func toOpenAIMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return out
}
