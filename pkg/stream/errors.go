package stream

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/koinonia/pkg/sse"
)

var (
	// ErrUnauthenticated means no credential was available; the request was
	// never issued.
	ErrUnauthenticated = errors.New("no credential available for the upstream request")

	// ErrInvalidRequest means the request could not be built.
	ErrInvalidRequest = errors.New("invalid completion request")

	// ErrIdleTimeout means the stream produced no bytes for the configured
	// idle window.
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrSessionReused is returned by a second call to Session.Run.
	ErrSessionReused = errors.New("session already ran")

	// ErrAccumulatorClosed is returned by Append after Finalize.
	ErrAccumulatorClosed = errors.New("accumulator already finalized")

	// ErrMalformedPayload is the framing error raised by undecodable JSON.
	ErrMalformedPayload = sse.ErrMalformedPayload

	errCanceled = errors.New("session canceled")
)

// StatusError is returned by a Transport when the upstream answers with a
// non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Body)
}
