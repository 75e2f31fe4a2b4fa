package stream

import (
	"strings"
	"sync"
)

// Listener observes accumulation. It receives an immutable snapshot of the
// full text so far and the number of deltas applied.
type Listener func(snapshot string, count int)

// Accumulator appends deltas, in arrival order, into one growing string.
//
// Append is called from a single read loop; Snapshot and Count may be called
// concurrently from observers.
type Accumulator struct {
	mu        sync.Mutex
	buf       strings.Builder
	count     int
	finalized bool
	final     string
	listener  Listener
}

// NewAccumulator returns an empty accumulator. listener may be nil.
func NewAccumulator(listener Listener) *Accumulator {
	return &Accumulator{listener: listener}
}

// Append concatenates delta and notifies the listener synchronously.
// After Finalize it returns ErrAccumulatorClosed.
func (a *Accumulator) Append(delta string) error {
	a.mu.Lock()
	if a.finalized {
		a.mu.Unlock()
		return ErrAccumulatorClosed
	}

	a.buf.WriteString(delta)
	a.count++
	snapshot, count := a.buf.String(), a.count
	a.mu.Unlock()

	if a.listener != nil {
		a.listener(snapshot, count)
	}

	return nil
}

// Snapshot returns the text accumulated so far.
func (a *Accumulator) Snapshot() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return a.final
	}
	return a.buf.String()
}

// Count returns the number of deltas appended.
func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Finalize freezes the accumulator and returns its text. Later calls return
// the same string.
func (a *Accumulator) Finalize() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.finalized {
		a.finalized = true
		a.final = a.buf.String()
	}
	return a.final
}
