// Package remote provides a storage driver that talks to a koinonia
// persistence API server over HTTP.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/papercomputeco/koinonia/pkg/llm"
	"github.com/papercomputeco/koinonia/pkg/storage"
)

const defaultTimeout = 30 * time.Second

// Driver implements storage.Driver against the persistence API.
type Driver struct {
	client *resty.Client
}

// NewDriver creates a driver for the API server at target,
// e.g. "http://localhost:8082".
func NewDriver(target string) (*Driver, error) {
	if target == "" {
		return nil, errors.New("remote storage target is required")
	}
	if _, err := url.ParseRequestURI(target); err != nil {
		return nil, fmt.Errorf("invalid remote storage target %q: %w", target, err)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(target, "/")).
		SetTimeout(defaultTimeout).
		SetHeader("Accept", "application/json").
		SetError(&llm.ErrorResponse{})

	return &Driver{client: client}, nil
}

func (d *Driver) ListConversations(ctx context.Context, userID string) ([]*llm.Conversation, error) {
	var out []*llm.Conversation
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("user", userID).
		SetResult(&out).
		Get("/users/{user}/conversations")
	if err := check(resp, err, ""); err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	return out, nil
}

func (d *Driver) GetConversation(ctx context.Context, conversationID string) (*llm.Conversation, error) {
	out := &llm.Conversation{}
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetResult(out).
		Get("/conversations/{id}")
	if err := check(resp, err, conversationID); err != nil {
		return nil, err
	}

	return out, nil
}

func (d *Driver) ListMessages(ctx context.Context, conversationID string) ([]*llm.Message, error) {
	var out []*llm.Message
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetResult(&out).
		Get("/conversations/{id}/messages")
	if err := check(resp, err, conversationID); err != nil {
		return nil, err
	}

	return out, nil
}

func (d *Driver) CreateConversation(ctx context.Context, userID, title string) (string, error) {
	out := &llm.CreateConversationResponse{}
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("user", userID).
		SetBody(llm.CreateConversationRequest{Title: title}).
		SetResult(out).
		Post("/users/{user}/conversations")
	if err := check(resp, err, ""); err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}

	return out.ID, nil
}

func (d *Driver) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	if err := storage.ValidateMessage(conversationID, role); err != nil {
		return err
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetBody(llm.AppendMessageRequest{Role: role, Content: content}).
		Post("/conversations/{id}/messages")

	return check(resp, err, conversationID)
}

func (d *Driver) RenameConversation(ctx context.Context, conversationID, title string) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetBody(llm.RenameConversationRequest{Title: title}).
		Patch("/conversations/{id}")

	return check(resp, err, conversationID)
}

func (d *Driver) DeleteConversation(ctx context.Context, conversationID string) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		Delete("/conversations/{id}")

	return check(resp, err, conversationID)
}

// Close is a no-op; the underlying HTTP client holds no dedicated resources.
func (d *Driver) Close() error {
	return nil
}

// check turns a transport error or an error status into a storage error.
func check(resp *resty.Response, err error, conversationID string) error {
	if err != nil {
		return fmt.Errorf("remote storage request: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := resp.Status()
	if e, ok := resp.Error().(*llm.ErrorResponse); ok && e.Error != "" {
		msg = e.Error
	}

	switch resp.StatusCode() {
	case http.StatusNotFound:
		return storage.NotFoundError{ID: conversationID}
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", storage.ErrInvalidMessage, msg)
	default:
		return fmt.Errorf("remote storage returned %d: %s", resp.StatusCode(), msg)
	}
}
