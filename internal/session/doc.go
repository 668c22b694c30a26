// Package session runs the request/response loop for one client connection.
//
// A Dispatcher receives a frame, decodes the request fields in the order
// recorded in protocol.Schemas, calls exactly one device operation and sends
// the reply. It repeats until the client sends DISCONNECT_REQUEST or a fatal
// error occurs.
//
// # Error Classes
//
// Device failures are reported to the client as ERROR_RESPONSE carrying the
// error text, and the session continues. Everything else ends the session:
//   - framing faults (*protocol.FramingError, protocol.ErrPayloadTooLarge)
//   - payload faults (wire.ErrBufferUnderrun, wire.ErrTrailingBytes, ...)
//   - an unknown message type (*ProtocolViolation), which gets no reply
//
// A client that closes the connection without DISCONNECT_REQUEST ends the
// session with an error wrapping protocol.ErrPeerClosed.
//
// # Tracing
//
// Each session and each request gets an OpenTelemetry span from the global
// tracer provider unless WithTracer overrides it.
package session
