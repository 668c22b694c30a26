package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge is returned when a header declares more payload
	// bytes than Limits.MaxPayloadBytes allows.
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	// ErrPeerClosed is returned by Receive when the peer closed the stream
	// cleanly on a frame boundary.
	ErrPeerClosed = errors.New("protocol: peer closed connection")
)

// FramingError reports a short or failed read/write of a frame section.
type FramingError struct {
	Op   string // "read header", "read payload", "write header", "write payload"
	Want int
	Got  int
	Err  error
}

func (e *FramingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("protocol: %s: wrong number of bytes: %d (expected: %d)", e.Op, e.Got, e.Want)
	}
	return fmt.Sprintf("protocol: %s: wrong number of bytes: %d (expected: %d): %v", e.Op, e.Got, e.Want, e.Err)
}

func (e *FramingError) Unwrap() error { return e.Err }
