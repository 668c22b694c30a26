// Package wire implements the byte codec shared by every arrayacq message.
//
// A Buffer is an append-only byte sequence with an independent read cursor.
// Encoders append to the end and never fail. Decoders consume from the cursor
// and fail with ErrBufferUnderrun instead of reading past the end.
//
// # Encoding Rules
//
// All values are big-endian with no padding:
//   - int16: 2 bytes
//   - uint32: 4 bytes
//   - float32: 4 bytes, IEEE-754 bit pattern
//   - string: uint32 byte count + raw bytes (no terminator)
//   - []float32: uint32 element count + count × 4 bytes
//   - []int16: uint32 element count + count × 2 bytes
//
// # Length Prefixes
//
// Declared counts are checked against the bytes that actually remain before
// anything is allocated, so a hostile prefix cannot force a large allocation.
// An optional MaxElements limit caps array and string sizes further.
//
// # Thread Safety
//
// A Buffer is not safe for concurrent use. Each session owns its own buffers.
package wire
