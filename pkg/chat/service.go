// Package chat orchestrates a chat turn: the user message is stored, the
// transcript is streamed upstream through a stream.Session, and a completed
// answer is stored and announced on the event stream.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/eventstream"
	"github.com/papercomputeco/koinonia/pkg/llm"
	"github.com/papercomputeco/koinonia/pkg/storage"
	"github.com/papercomputeco/koinonia/pkg/stream"
	"github.com/papercomputeco/koinonia/pkg/worker"
)

// Enqueuer accepts completed-turn events for asynchronous publication.
// *worker.Pool satisfies it.
type Enqueuer interface {
	Enqueue(job worker.Job) error
}

// Option configures a Service.
type Option func(*Service)

// WithModel sets the model sent upstream.
func WithModel(model string) Option {
	return func(s *Service) { s.model = model }
}

// WithSystemPrompt prepends a system message to every request. It is never
// stored.
func WithSystemPrompt(prompt string) Option {
	return func(s *Service) { s.systemPrompt = strings.TrimSpace(prompt) }
}

// WithIdleTimeout sets the idle window of each session.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Service) { s.idleTimeout = d }
}

// WithEvents publishes a TurnCompletedEvent for every stored answer.
func WithEvents(e Enqueuer) Option {
	return func(s *Service) { s.events = e }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// TurnRequest is one user turn.
type TurnRequest struct {
	// UserID owns a newly created conversation. Required when ConversationID
	// is empty.
	UserID string

	// ConversationID continues an existing conversation. Empty starts a new one.
	ConversationID string

	Text string

	// OnDelta observes the growing answer.
	OnDelta stream.Listener
}

// TurnResult is the outcome of Submit.
type TurnResult struct {
	stream.Result

	ConversationID string

	// Title is set when the conversation was (re)titled by this turn.
	Title string
}

// turn is the occupant of the single session slot. done closes once the
// turn, including its persistence, is finished.
type turn struct {
	session *stream.Session
	done    chan struct{}
}

// Service runs chat turns against a storage.Driver and a stream.Transport.
// At most one session is open at a time: a new Submit cancels the current
// one and waits for it to settle first.
type Service struct {
	driver    storage.Driver
	transport stream.Transport

	model        string
	systemPrompt string
	idleTimeout  time.Duration
	events       Enqueuer
	logger       *zap.Logger

	// submitMu serializes the prepare phase of Submit.
	submitMu sync.Mutex

	mu      sync.Mutex
	current *turn
}

// New returns a Service.
func New(driver storage.Driver, transport stream.Transport, opts ...Option) *Service {
	s := &Service{
		driver:      driver,
		transport:   transport,
		idleTimeout: stream.DefaultIdleTimeout,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Submit runs one turn to a terminal state. The returned error reports
// invalid input and storage failures; stream failures are reported in the
// result's State and Reason. When storing the answer fails the result still
// carries the streamed content alongside an ErrPersistence error.
func (s *Service) Submit(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyTurn
	}
	if req.ConversationID == "" && req.UserID == "" {
		return nil, ErrMissingUser
	}

	// The turn takes the slot before anything is stored, so a Cancel issued
	// while the user message is written reaches this turn's session.
	s.submitMu.Lock()
	s.stopCurrent()
	t := &turn{
		session: stream.NewSession(s.transport,
			stream.WithIdleTimeout(s.idleTimeout),
			stream.WithListener(req.OnDelta),
			stream.WithLogger(s.logger),
		),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
	s.submitMu.Unlock()

	defer close(t.done)

	out, streamReq, err := s.prepare(ctx, req, text)
	if err != nil {
		s.release(t)
		return nil, err
	}

	started := time.Now().UTC()
	out.Result = t.session.Run(ctx, streamReq)

	log := s.logger.With(
		zap.String("conversation_id", out.ConversationID),
		zap.String("session_id", out.SessionID),
	)

	if out.State != stream.StateCompleted {
		log.Debug("answer not stored",
			zap.String("state", out.State.String()),
			zap.String("reason", out.Reason),
		)
		return out, nil
	}

	if err := s.storeAnswer(ctx, out, streamReq.Messages, log); err != nil {
		return out, err
	}

	s.publish(req.UserID, text, out, started, log)
	return out, nil
}

// prepare stores the user message and builds the upstream request. Nothing
// is opened when it fails.
func (s *Service) prepare(ctx context.Context, req TurnRequest, text string) (*TurnResult, stream.Request, error) {
	out := &TurnResult{ConversationID: req.ConversationID}

	if out.ConversationID == "" {
		title := DeriveTitle(text)
		id, err := s.driver.CreateConversation(ctx, req.UserID, title)
		if err != nil {
			return nil, stream.Request{}, fmt.Errorf("%w: creating conversation: %w", ErrPersistence, err)
		}
		out.ConversationID = id
		out.Title = title
		s.logger.Debug("conversation created", zap.String("conversation_id", id))
	}

	if err := s.driver.AppendMessage(ctx, out.ConversationID, llm.RoleUser, text); err != nil {
		return nil, stream.Request{}, fmt.Errorf("%w: storing user message: %w", ErrPersistence, err)
	}

	history, err := s.driver.ListMessages(ctx, out.ConversationID)
	if err != nil {
		return nil, stream.Request{}, fmt.Errorf("%w: loading transcript: %w", ErrPersistence, err)
	}

	messages := llm.Transcript(history)
	if s.systemPrompt != "" {
		messages = append([]llm.Message{llm.NewTextMessage(llm.RoleSystem, s.systemPrompt)}, messages...)
	}

	return out, stream.Request{Model: s.model, Messages: messages}, nil
}

// release empties the slot after a turn failed before streaming. The unused
// session is settled as aborted so its Done channel closes.
func (s *Service) release(t *turn) {
	t.session.Cancel()
	t.session.Run(context.Background(), stream.Request{})

	s.mu.Lock()
	if s.current == t {
		s.current = nil
	}
	s.mu.Unlock()
}

// storeAnswer appends the assistant message and, on the first exchange,
// retitles the conversation from the first user turn.
func (s *Service) storeAnswer(ctx context.Context, out *TurnResult, sent []llm.Message, log *zap.Logger) error {
	// The answer is stored even if the caller gave up after completion.
	ctx = context.WithoutCancel(ctx)

	if err := s.driver.AppendMessage(ctx, out.ConversationID, llm.RoleAssistant, out.Content); err != nil {
		log.Error("failed to store answer", zap.Error(err))
		return fmt.Errorf("%w: storing answer: %w", ErrPersistence, err)
	}

	first, userTurns := firstUserTurn(sent)
	if userTurns != 1 {
		return nil
	}

	title := DeriveTitle(first)
	if err := s.driver.RenameConversation(ctx, out.ConversationID, title); err != nil {
		log.Warn("failed to title conversation", zap.Error(err))
		return nil
	}
	out.Title = title

	return nil
}

func (s *Service) publish(userID, text string, out *TurnResult, started time.Time, log *zap.Logger) {
	if s.events == nil {
		return
	}

	completed := time.Now().UTC()
	ev := eventstream.NewTurnCompletedEvent()
	ev.ConversationID = out.ConversationID
	ev.UserID = userID
	ev.SessionID = out.SessionID
	ev.Model = s.model
	ev.UserMessage = text
	ev.AssistantMessage = out.Content
	ev.Stream = eventstream.TurnStreamMeta{
		StartedAt:    started,
		CompletedAt:  completed,
		DurationMs:   completed.Sub(started).Milliseconds(),
		Deltas:       out.Deltas,
		Partial:      out.Partial,
		FinishReason: out.FinishReason,
	}

	if err := s.events.Enqueue(worker.Job{Event: ev}); err != nil {
		log.Warn("turn event not queued", zap.Error(err))
	}
}

// stopCurrent cancels the occupant of the slot and waits for it to finish.
func (s *Service) stopCurrent() {
	s.mu.Lock()
	t := s.current
	s.mu.Unlock()

	if t == nil {
		return
	}

	t.session.Cancel()
	<-t.done
}

// Cancel cancels the current session, if any. It does not wait.
func (s *Service) Cancel() {
	s.mu.Lock()
	t := s.current
	s.mu.Unlock()

	if t != nil {
		t.session.Cancel()
	}
}

// Current returns the session of the running or last turn. It is nil before
// the first turn and after a turn that failed before streaming.
func (s *Service) Current() *stream.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	return s.current.session
}

// Conversations lists the user's conversations, most recently updated first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]*llm.Conversation, error) {
	convs, err := s.driver.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing conversations: %w", ErrPersistence, err)
	}
	return convs, nil
}

// Conversation returns one conversation.
func (s *Service) Conversation(ctx context.Context, conversationID string) (*llm.Conversation, error) {
	conv, err := s.driver.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading conversation: %w", ErrPersistence, err)
	}
	return conv, nil
}

// History returns the stored messages of a conversation in order.
func (s *Service) History(ctx context.Context, conversationID string) ([]*llm.Message, error) {
	msgs, err := s.driver.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading history: %w", ErrPersistence, err)
	}
	return msgs, nil
}

// Rename sets a conversation's title. The title is normalized like a
// derived one.
func (s *Service) Rename(ctx context.Context, conversationID, title string) error {
	title = DeriveTitle(title)
	if title == "" {
		return ErrEmptyTitle
	}

	if err := s.driver.RenameConversation(ctx, conversationID, title); err != nil {
		return fmt.Errorf("%w: renaming conversation: %w", ErrPersistence, err)
	}
	return nil
}

// Delete removes a conversation and its messages.
func (s *Service) Delete(ctx context.Context, conversationID string) error {
	if err := s.driver.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("%w: deleting conversation: %w", ErrPersistence, err)
	}
	return nil
}

func firstUserTurn(msgs []llm.Message) (string, int) {
	var (
		first string
		n     int
	)
	for _, m := range msgs {
		if m.Role != llm.RoleUser {
			continue
		}
		if n == 0 {
			first = m.Content
		}
		n++
	}
	return first, n
}
