// Package worker provides an asynchronous worker pool that publishes completed
// chat turns to the configured eventstream.Publisher.
//
// The pool decouples event publication from the chat path so a slow or
// unavailable broker never delays the next turn.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 15 * time.Second
)

// ErrPoolClosed is returned by Enqueue after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Event *eventstream.TurnCompletedEvent
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Publisher receives every enqueued event. Required.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds a single publish (defaults to 15s).
	JobTimeout time.Duration

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes publish jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger

	// mu guards closed against concurrent Enqueue and Close
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Publisher == nil {
		return nil, errors.New("worker pool requires a publisher")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns nil if enqueued. A full queue drops the job and returns an error.
func (p *Pool) Enqueue(job Job) error {
	if job.Event == nil {
		return eventstream.ErrNilTurnEvent
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("event_id", job.Event.EventID),
			zap.String("conversation_id", job.Event.ConversationID),
		)
		return nil
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("event_id", job.Event.EventID),
			zap.String("conversation_id", job.Event.ConversationID),
		)
		return fmt.Errorf("queue full, dropped event %s", job.Event.EventID)
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Closing twice is a no-op.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}

// processJob publishes one event. Failures are logged, not retried.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	if err := p.config.Publisher.PublishTurn(ctx, job.Event); err != nil {
		p.logger.Error("failed to publish turn event",
			zap.String("event_id", job.Event.EventID),
			zap.String("conversation_id", job.Event.ConversationID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("turn event published",
		zap.String("event_id", job.Event.EventID),
	)
}
