// Package protocol implements the arrayacq request/response wire protocol.
//
// Every exchange is one message frame: a fixed 8-byte header followed by a
// positional payload whose layout depends only on the message type. Nothing
// on the wire describes the payload; both ends must agree on the field order
// recorded in Schemas.
//
// # Frame Format
//
// All fields are big-endian:
//   - Message type: 4 bytes (see the Type constants, base 2001)
//   - Payload length: 4 bytes
//   - Payload: length bytes, encoded with package wire
//
// # Usage Example
//
//	msg := protocol.NewMessage(protocol.DefaultLimits())
//
//	// Send a request
//	msg.Prepare(protocol.SetGainRequest)
//	msg.Payload.PutFloat32(30.0)
//	if err := msg.Send(conn); err != nil {
//	    return err
//	}
//
//	// Read the reply
//	typ, err := msg.Receive(conn)
//	if err != nil {
//	    return err
//	}
//
// # Version Check
//
// The only versioning is the uint32 carried by CONNECT_REQUEST, compared
// against Version. A mismatch is answered with ERROR_RESPONSE and the
// connection stays open.
//
// # Error Handling
//
// Framing faults (short reads or writes, oversized length fields) are
// returned as *FramingError or ErrPayloadTooLarge. None of them can be
// recovered on the same connection: the byte stream is no longer aligned to
// a frame boundary.
package protocol
