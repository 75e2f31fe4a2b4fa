// Package stream drives one streaming chat completion from request to
// terminal state.
//
// A Session owns the read loop: raw chunks from a Transport flow through an
// sse.Decoder and sse.ParseLine into an Accumulator, whose listener lets
// observers render the growing answer. The session settles in exactly one of
// completed, aborted or failed, and reports it in a Result.
package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/sse"
)

const (
	// DefaultIdleTimeout bounds the silence between two chunks.
	DefaultIdleTimeout = 60 * time.Second

	readSize = 4096
)

// Result is the outcome of a Session.
type Result struct {
	SessionID string
	State     State

	// Content is the final text. Empty unless State is StateCompleted.
	Content string

	// Deltas is the number of deltas applied before the session settled.
	Deltas int

	// Partial is set when the stream failed after content had arrived and the
	// partial text was kept.
	Partial bool

	// FinishReason is the last finish_reason reported by the provider.
	FinishReason string

	// Reason is a human readable explanation for aborted and failed results,
	// and for partial completions.
	Reason string

	// Err is the underlying cause for failed results and partial completions.
	Err error

	// ProviderErrors holds the messages of in-band error objects the provider
	// sent. They do not end the stream.
	ProviderErrors []string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithIdleTimeout sets the idle window. Zero or negative disables it.
func WithIdleTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.idleTimeout = d }
}

// WithListener observes every applied delta.
func WithListener(l Listener) SessionOption {
	return func(s *Session) { s.listener = l }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session is a single streaming completion. It is single-use.
type Session struct {
	id          string
	transport   Transport
	idleTimeout time.Duration
	listener    Listener
	logger      *zap.Logger

	acc *Accumulator

	// providerErrors is only touched by the goroutine running Run.
	providerErrors []string

	started    atomic.Bool
	cancelOnce sync.Once
	canceled   chan struct{}
	done       chan struct{}

	mu        sync.Mutex
	state     State
	cancelCtx context.CancelCauseFunc
}

// NewSession returns an idle session bound to transport.
func NewSession(transport Transport, opts ...SessionOption) *Session {
	s := &Session{
		id:          uuid.NewString(),
		transport:   transport,
		idleTimeout: DefaultIdleTimeout,
		logger:      zap.NewNop(),
		canceled:    make(chan struct{}),
		done:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.acc = NewAccumulator(s.listener)
	s.logger = s.logger.With(zap.String("session_id", s.id))

	return s
}

// ID returns the session's unique identity.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the text accumulated so far.
func (s *Session) Snapshot() string {
	return s.acc.Snapshot()
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Cancel requests cancellation. The read loop observes it before applying the
// next chunk or line; nothing is appended afterwards. A pending read is
// unblocked by canceling the request context. Safe to call at any time and
// more than once.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() { close(s.canceled) })

	s.mu.Lock()
	cancel := s.cancelCtx
	s.mu.Unlock()

	if cancel != nil {
		cancel(errCanceled)
	}
}

// Run drives the session to a terminal state and returns the outcome. It
// blocks until then. Canceling ctx aborts the session like Cancel does.
func (s *Session) Run(ctx context.Context, req Request) Result {
	if !s.started.CompareAndSwap(false, true) {
		return Result{SessionID: s.id, State: s.State(), Err: ErrSessionReused, Reason: ErrSessionReused.Error()}
	}
	defer close(s.done)

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	s.mu.Lock()
	s.cancelCtx = cancel
	s.mu.Unlock()

	if s.cancelRequested() {
		return s.abort()
	}

	if len(req.Messages) == 0 {
		return s.settle(StateFailed, ErrInvalidRequest)
	}

	var idle *time.Timer
	if s.idleTimeout > 0 {
		idle = time.AfterFunc(s.idleTimeout, func() { cancel(ErrIdleTimeout) })
		defer idle.Stop()
	}

	start := time.Now()
	body, err := s.transport.Open(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return s.interrupted(ctx)
		}
		s.logger.Debug("failed to open stream", zap.Error(err))
		return s.settle(StateFailed, err)
	}
	defer body.Close()

	s.setState(StateOpen)
	s.logger.Debug("stream opened",
		zap.String("model", req.Model),
		zap.Duration("latency", time.Since(start)),
	)

	return s.readLoop(ctx, body, idle)
}

type readResult struct {
	data []byte
	err  error
}

// readLoop is the single consumer of the body. Chunks are applied in arrival
// order; cancellation is checked before every chunk and every line.
func (s *Session) readLoop(ctx context.Context, body io.Reader, idle *time.Timer) Result {
	chunks := make(chan readResult)
	go func() {
		buf := make([]byte, readSize)
		for {
			n, err := body.Read(buf)
			rr := readResult{err: err}
			if n > 0 {
				rr.data = bytes.Clone(buf[:n])
			}

			select {
			case chunks <- rr:
			case <-ctx.Done():
				return
			}

			if err != nil {
				return
			}
		}
	}()

	dec := sse.NewDecoder()
	var finishReason string

	for {
		var rr readResult
		select {
		case <-ctx.Done():
			return s.interrupted(ctx)
		case rr = <-chunks:
		}

		if s.cancelRequested() {
			return s.abort()
		}
		if idle != nil {
			idle.Reset(s.idleTimeout)
		}

		for _, line := range dec.Write(rr.data) {
			if s.cancelRequested() {
				return s.abort()
			}

			ev, err := sse.ParseLine(line)
			if ev.FinishReason != "" {
				finishReason = ev.FinishReason
			}

			switch ev.Kind {
			case sse.KindDelta:
				if err := s.acc.Append(ev.Delta); err != nil {
					return s.settle(StateFailed, err)
				}

			case sse.KindTerminator:
				// Anything after the terminator is ignored.
				dec.Close()
				return s.complete(finishReason)

			case sse.KindIgnored:
				if ev.Message != "" {
					s.logger.Warn("provider reported an error in the stream", zap.String("message", ev.Message))
					s.providerErrors = append(s.providerErrors, ev.Message)
				}

			case sse.KindMalformed:
				s.logger.Debug("malformed payload, ending stream", zap.Error(err))
				return s.settle(StateFailed, err)
			}
		}

		if rr.err == nil {
			continue
		}

		if errors.Is(rr.err, io.EOF) {
			if n := dec.Close(); n > 0 {
				s.logger.Debug("discarded unterminated trailing fragment", zap.Int("bytes", n))
			}
			return s.complete(finishReason)
		}

		if ctx.Err() != nil {
			return s.interrupted(ctx)
		}
		return s.settle(StateFailed, rr.err)
	}
}

func (s *Session) cancelRequested() bool {
	select {
	case <-s.canceled:
		return true
	default:
		return false
	}
}

// interrupted resolves a canceled context into the matching terminal state.
func (s *Session) interrupted(ctx context.Context) Result {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrIdleTimeout) && !s.cancelRequested() {
		return s.settle(StateFailed, ErrIdleTimeout)
	}
	return s.abort()
}

func (s *Session) complete(finishReason string) Result {
	content := s.acc.Finalize()
	s.setState(StateCompleted)

	s.logger.Debug("stream completed",
		zap.Int("deltas", s.acc.Count()),
		zap.Int("bytes", len(content)),
	)

	return Result{
		SessionID:    s.id,
		State:        StateCompleted,
		Content:      content,
		Deltas:         s.acc.Count(),
		FinishReason:   finishReason,
		ProviderErrors: s.providerErrors,
	}
}

func (s *Session) abort() Result {
	s.acc.Finalize()
	s.setState(StateAborted)

	s.logger.Debug("stream aborted", zap.Int("deltas", s.acc.Count()))

	return Result{
		SessionID: s.id,
		State:     StateAborted,
		Deltas:    s.acc.Count(),
		Reason:    errCanceled.Error(),
	}
}

// settle ends the session on a failure. Once at least one delta has been
// applied the partial text is kept and the session completes.
func (s *Session) settle(state State, cause error) Result {
	content := s.acc.Finalize()
	count := s.acc.Count()

	if state == StateFailed && count > 0 {
		s.setState(StateCompleted)
		s.logger.Warn("stream ended early, keeping partial content",
			zap.Int("deltas", count),
			zap.Error(cause),
		)
		return Result{
			SessionID: s.id,
			State:     StateCompleted,
			Content:   content,
			Deltas:    count,
			Partial:   true,
			Reason:    cause.Error(),
			Err:       cause,

			ProviderErrors: s.providerErrors,
		}
	}

	s.setState(state)
	s.logger.Debug("stream failed", zap.Error(cause))

	return Result{
		SessionID: s.id,
		State:     state,
		Deltas:    count,
		Reason:    cause.Error(),
		Err:       cause,

		ProviderErrors: s.providerErrors,
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
