package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// InitialCapacity matches the reservation used for every fresh buffer.
const InitialCapacity = 8192

var (
	// ErrBufferUnderrun is returned when fewer bytes remain than a field needs.
	ErrBufferUnderrun = errors.New("wire: buffer underrun")
	// ErrSizeMismatch is returned by fixed-count decoders when the declared
	// count differs from the expected one.
	ErrSizeMismatch = errors.New("wire: size mismatch")
	// ErrLengthLimit is returned when a declared count exceeds MaxElements.
	ErrLengthLimit = errors.New("wire: length prefix exceeds limit")
	// ErrTrailingBytes is returned by ExpectEnd when unread bytes remain.
	ErrTrailingBytes = errors.New("wire: trailing bytes after last field")
)

// Buffer is a growable big-endian byte buffer with a read cursor.
type Buffer struct {
	data []byte
	read int

	// MaxElements caps decoded string and array counts. Zero means no cap
	// beyond the bytes actually present.
	MaxElements uint32
}

// NewBuffer creates an empty buffer with the default capacity reserved.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, InitialCapacity)}
}

// Reset discards the contents and rewinds the read cursor.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.read = 0
}

// Load resizes the contents to n bytes ready to be filled by the
// caller and rewinds the cursor. The returned slice aliases the buffer.
func (b *Buffer) Load(n int) []byte {
	if cap(b.data) < n {
		b.data = make([]byte, n)
	} else {
		b.data = b.data[:n]
	}
	b.read = 0
	return b.data
}

// Bytes returns the written bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the number of bytes written.
func (b *Buffer) Len() int { return len(b.data) }

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.read }

// ExpectEnd fails if any bytes are left unread.
func (b *Buffer) ExpectEnd() error {
	if n := b.Remaining(); n != 0 {
		return fmt.Errorf("%w: %d byte(s)", ErrTrailingBytes, n)
	}
	return nil
}

// PutInt16 appends a signed 16-bit value.
func (b *Buffer) PutInt16(v int16) {
	b.data = binary.BigEndian.AppendUint16(b.data, uint16(v))
}

// PutUint32 appends an unsigned 32-bit value.
func (b *Buffer) PutUint32(v uint32) {
	b.data = binary.BigEndian.AppendUint32(b.data, v)
}

// PutFloat32 appends the IEEE-754 bit pattern of v.
func (b *Buffer) PutFloat32(v float32) {
	b.PutUint32(math.Float32bits(v))
}

// PutString appends a byte-count prefixed string.
func (b *Buffer) PutString(s string) {
	b.PutUint32(uint32(len(s)))
	b.data = append(b.data, s...)
}

// PutFloat32Array appends an element-count prefixed float array.
func (b *Buffer) PutFloat32Array(a []float32) {
	b.PutUint32(uint32(len(a)))
	b.grow(len(a) * 4)
	for _, v := range a {
		b.data = binary.BigEndian.AppendUint32(b.data, math.Float32bits(v))
	}
}

// PutInt16Array appends an element-count prefixed sample array.
func (b *Buffer) PutInt16Array(a []int16) {
	b.PutUint32(uint32(len(a)))
	b.grow(len(a) * 2)
	for _, v := range a {
		b.data = binary.BigEndian.AppendUint16(b.data, uint16(v))
	}
}

// ReadInt16 decodes a signed 16-bit value.
func (b *Buffer) ReadInt16() (int16, error) {
	p, err := b.take(2, "int16")
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(p)), nil
}

// ReadUint32 decodes an unsigned 32-bit value.
func (b *Buffer) ReadUint32() (uint32, error) {
	p, err := b.take(4, "uint32")
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

// ReadFloat32 decodes a float from its IEEE-754 bit pattern.
func (b *Buffer) ReadFloat32() (float32, error) {
	p, err := b.take(4, "float32")
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(p)), nil
}

// ReadString decodes a byte-count prefixed string.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.count("string", 1)
	if err != nil {
		return "", err
	}
	p, err := b.take(int(n), "string")
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// ReadFloat32Array decodes an element-count prefixed float array.
func (b *Buffer) ReadFloat32Array() ([]float32, error) {
	n, err := b.count("float32 array", 4)
	if err != nil {
		return nil, err
	}
	return b.float32s(n)
}

// ReadFloat32ArrayN decodes a float array whose count must equal n.
func (b *Buffer) ReadFloat32ArrayN(n int) ([]float32, error) {
	got, err := b.count("float32 array", 4)
	if err != nil {
		return nil, err
	}
	if int(got) != n {
		return nil, fmt.Errorf("%w: received=%d, expected=%d", ErrSizeMismatch, got, n)
	}
	return b.float32s(got)
}

// ReadInt16Array decodes an element-count prefixed sample array.
func (b *Buffer) ReadInt16Array() ([]int16, error) {
	n, err := b.count("int16 array", 2)
	if err != nil {
		return nil, err
	}
	return b.int16s(n)
}

// ReadInt16ArrayN decodes a sample array whose count must equal n.
func (b *Buffer) ReadInt16ArrayN(n int) ([]int16, error) {
	got, err := b.count("int16 array", 2)
	if err != nil {
		return nil, err
	}
	if int(got) != n {
		return nil, fmt.Errorf("%w: received=%d, expected=%d", ErrSizeMismatch, got, n)
	}
	return b.int16s(got)
}

func (b *Buffer) float32s(n uint32) ([]float32, error) {
	p, err := b.take(int(n)*4, "float32 array")
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(p[i*4:]))
	}
	return out, nil
}

func (b *Buffer) int16s(n uint32) ([]int16, error) {
	p, err := b.take(int(n)*2, "int16 array")
	if err != nil {
		return nil, err
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(p[i*2:]))
	}
	return out, nil
}

// count reads a length prefix and checks it against the limit and the bytes
// left. The cursor is restored on failure.
func (b *Buffer) count(what string, width int) (uint32, error) {
	start := b.read
	n, err := b.ReadUint32()
	if err != nil {
		return 0, fmt.Errorf("%s length: %w", what, err)
	}
	if b.MaxElements > 0 && n > b.MaxElements {
		b.read = start
		return 0, fmt.Errorf("%w: %s count %d > %d", ErrLengthLimit, what, n, b.MaxElements)
	}
	if uint64(n)*uint64(width) > uint64(b.Remaining()) {
		b.read = start
		return 0, fmt.Errorf("%w: %s needs %d bytes, %d remain", ErrBufferUnderrun, what, uint64(n)*uint64(width), b.Remaining())
	}
	return n, nil
}

func (b *Buffer) take(n int, what string) ([]byte, error) {
	if n < 0 || n > b.Remaining() {
		return nil, fmt.Errorf("%w: could not get %s (need %d, have %d)", ErrBufferUnderrun, what, n, b.Remaining())
	}
	p := b.data[b.read : b.read+n]
	b.read += n
	return p, nil
}

func (b *Buffer) grow(n int) {
	if cap(b.data)-len(b.data) >= n {
		return
	}
	size := 2 * cap(b.data)
	if size < len(b.data)+n {
		size = len(b.data) + n
	}
	next := make([]byte, len(b.data), size)
	copy(next, b.data)
	b.data = next
}
