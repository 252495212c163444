package orchestrator

import (
	"errors"
	"fmt"
)

// ErrStreamTransport is the sentinel behind every StreamTransportError
var ErrStreamTransport = errors.New("stream transport failure")

// StreamTransportError reports a failure opening or reading the completion
// stream. It is fatal to the call.
type StreamTransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *StreamTransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion stream for %s failed with status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion stream for %s failed: %v", e.Endpoint, e.Err)
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// ErrStreamTransport as well as context.Canceled.
func (e *StreamTransportError) Unwrap() []error {
	return []error{ErrStreamTransport, e.Err}
}
