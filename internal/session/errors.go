package session

import (
	"errors"
	"fmt"

	"github.com/muurk/arrayacq/internal/device"
	"github.com/muurk/arrayacq/internal/protocol"
	"github.com/muurk/arrayacq/internal/wire"
)

// InvalidVersionMessage is the ERROR_RESPONSE text for a CONNECT_REQUEST
// carrying the wrong protocol version.
const InvalidVersionMessage = "Invalid protocol version."

// ProtocolViolation is returned when a client sends a message type the
// server does not accept as a request.
type ProtocolViolation struct {
	Type protocol.Type
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("session: Invalid request: %d.", uint32(e.Type))
}

// rejection is a request refused by the dispatcher itself.
type rejection string

func (r rejection) Error() string { return string(r) }

// errorText returns the text sent in ERROR_RESPONSE for err.
func errorText(err error) string {
	var derr *device.Error
	if errors.As(err, &derr) {
		return derr.Message
	}
	return err.Error()
}

// Kind classifies a session-ending error for logs and metrics.
func Kind(err error) string {
	var (
		fe *protocol.FramingError
		pv *ProtocolViolation
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, protocol.ErrPeerClosed):
		return "peer_closed"
	case errors.As(err, &fe), errors.Is(err, protocol.ErrPayloadTooLarge):
		return "framing"
	case errors.As(err, &pv):
		return "protocol_violation"
	case errors.Is(err, wire.ErrBufferUnderrun), errors.Is(err, wire.ErrSizeMismatch),
		errors.Is(err, wire.ErrLengthLimit), errors.Is(err, wire.ErrTrailingBytes):
		return "payload"
	default:
		return "other"
	}
}
