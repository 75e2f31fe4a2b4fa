package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/koinonia/pkg/eventstream"
)

// RecordingPublisher is a test eventstream.Publisher that records published
// events and can be made to fail or block.
type RecordingPublisher struct {
	mu       sync.Mutex
	events   []*eventstream.TurnCompletedEvent
	attempts int
	inFlight int
	failWith error
	gate     chan struct{}
	closed   bool
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) PublishTurn(ctx context.Context, event *eventstream.TurnCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	p.mu.Lock()
	p.attempts++
	p.inFlight++
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--

	if p.failWith != nil {
		return p.failWith
	}
	p.events = append(p.events, event)
	return nil
}

func (p *RecordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Events returns the successfully published events.
func (p *RecordingPublisher) Events() []*eventstream.TurnCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.TurnCompletedEvent(nil), p.events...)
}

// ConversationIDs returns the conversation id of every published event.
func (p *RecordingPublisher) ConversationIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.events))
	for _, e := range p.events {
		ids = append(ids, e.ConversationID)
	}
	return ids
}

// Attempts counts PublishTurn calls with a non-nil event.
func (p *RecordingPublisher) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// InFlight counts publishes currently blocked.
func (p *RecordingPublisher) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Closed reports whether Close was called.
func (p *RecordingPublisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// FailWith makes subsequent publishes return err.
func (p *RecordingPublisher) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWith = err
}

// Block holds subsequent publishes until Unblock.
func (p *RecordingPublisher) Block() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate = make(chan struct{})
}

// Unblock releases every held publish.
func (p *RecordingPublisher) Unblock() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gate != nil {
		close(p.gate)
		p.gate = nil
	}
}
