package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrTooShort indicates a frame is shorter than the header.
	ErrTooShort = errors.New("frame too short")
	// ErrMalformedAck indicates an ack frame carries a payload.
	ErrMalformedAck = errors.New("malformed ack")
	// ErrTimeout indicates a pending request is dropped without an ack,
	// either evicted by a newer request with the same id or expired.
	ErrTimeout = errors.New("timeout")
	// ErrClosed indicates the channel is closed.
	ErrClosed = errors.New("channel closed")
)

// FrameError is a frame-scoped error. The offending frame is dropped
// and the link keeps running.
type FrameError struct {
	// Stage is where the frame was rejected: "slip", "header" or "payload".
	Stage string
	// Type is the message type tag if the header was decoded.
	Type uint16
	Err  error
}

// Error implements error.
func (e *FrameError) Error() string {
	if e.Stage == stagePayload {
		return fmt.Sprintf("%s (type %d): %v", e.Stage, e.Type, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *FrameError) Unwrap() error {
	return e.Err
}

const (
	stageSlip    = "slip"
	stageHeader  = "header"
	stagePayload = "payload"
)
