package protocol

import (
	"errors"
	"fmt"
	"io"

	"github.com/muurk/arrayacq/internal/wire"
)

// DefaultMaxPayloadBytes bounds the payload length accepted from a header.
const DefaultMaxPayloadBytes = 64 << 20

// DefaultMaxElements bounds any single array or string count in a payload.
const DefaultMaxElements = 16 << 20

// Limits restricts what Receive is willing to allocate for a peer.
type Limits struct {
	MaxPayloadBytes uint32
	MaxElements     uint32
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		MaxElements:     DefaultMaxElements,
	}
}

// Message is a reusable frame: one header plus a payload buffer.
//
// A Message is not safe for concurrent use. A session owns exactly one and
// reuses it for every request and response.
type Message struct {
	Payload *wire.Buffer

	header *wire.Buffer
	typ    Type
	limits Limits
}

// NewMessage creates an empty message. Zero fields in limits are replaced by
// the defaults.
func NewMessage(limits Limits) *Message {
	if limits.MaxPayloadBytes == 0 {
		limits.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if limits.MaxElements == 0 {
		limits.MaxElements = DefaultMaxElements
	}
	payload := wire.NewBuffer()
	payload.MaxElements = limits.MaxElements
	return &Message{
		Payload: payload,
		header:  wire.NewBuffer(),
		limits:  limits,
	}
}

// Type returns the type of the message last prepared or received.
func (m *Message) Type() Type { return m.typ }

// Limits returns the limits in effect.
func (m *Message) Limits() Limits { return m.limits }

// Prepare clears the header and payload and records t as the outgoing type.
func (m *Message) Prepare(t Type) {
	m.header.Reset()
	m.Payload.Reset()
	m.typ = t
}

// Send writes the header and, if non-empty, the payload to w.
func (m *Message) Send(w io.Writer) error {
	m.header.Reset()
	m.header.PutUint32(uint32(m.typ))
	m.header.PutUint32(uint32(m.Payload.Len()))

	if err := writeAll(w, m.header.Bytes(), "write header"); err != nil {
		return err
	}
	if m.Payload.Len() == 0 {
		return nil
	}
	return writeAll(w, m.Payload.Bytes(), "write payload")
}

// Receive reads one frame from r and returns its type. The payload is left in
// m.Payload with the read cursor at the start.
func (m *Message) Receive(r io.Reader) (Type, error) {
	hdr := m.header.Load(HeaderSize)
	n, err := io.ReadFull(r, hdr)
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return 0, errors.Join(ErrPeerClosed, io.EOF)
		}
		return 0, &FramingError{Op: "read header", Want: HeaderSize, Got: n, Err: err}
	}

	// Header bytes are always present here, so these cannot fail.
	raw, _ := m.header.ReadUint32()
	length, _ := m.header.ReadUint32()
	m.typ = Type(raw)

	if length > m.limits.MaxPayloadBytes {
		m.Payload.Reset()
		return m.typ, fmt.Errorf("%w: %d bytes (limit %d) for %s", ErrPayloadTooLarge, length, m.limits.MaxPayloadBytes, m.typ)
	}

	body := m.Payload.Load(int(length))
	if length > 0 {
		n, err = io.ReadFull(r, body)
		if err != nil {
			return m.typ, &FramingError{Op: "read payload", Want: int(length), Got: n, Err: err}
		}
	}
	return m.typ, nil
}

func writeAll(w io.Writer, p []byte, op string) error {
	n, err := w.Write(p)
	if err != nil {
		return &FramingError{Op: op, Want: len(p), Got: n, Err: err}
	}
	if n != len(p) {
		return &FramingError{Op: op, Want: len(p), Got: n, Err: io.ErrShortWrite}
	}
	return nil
}
