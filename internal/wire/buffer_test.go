package wire

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestScalarRoundTrip(t *testing.T) {
	int16s := []int16{0, 1, -1, math.MinInt16, math.MaxInt16}
	uint32s := []uint32{0, 1, 0x01020304, math.MaxUint32}
	floats := []float32{0, 1.5, -1.5, float32(math.Copysign(0, -1)), 30.0, 40e6, math.MaxFloat32, math.SmallestNonzeroFloat32, float32(math.Inf(-1))}

	b := NewBuffer()
	for _, v := range int16s {
		b.PutInt16(v)
	}
	for _, v := range uint32s {
		b.PutUint32(v)
	}
	for _, v := range floats {
		b.PutFloat32(v)
	}

	for _, want := range int16s {
		got, err := b.ReadInt16()
		if err != nil {
			t.Fatalf("ReadInt16() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadInt16() = %d, want %d", got, want)
		}
	}
	for _, want := range uint32s {
		got, err := b.ReadUint32()
		if err != nil {
			t.Fatalf("ReadUint32() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadUint32() = %d, want %d", got, want)
		}
	}
	for _, want := range floats {
		got, err := b.ReadFloat32()
		if err != nil {
			t.Fatalf("ReadFloat32() error = %v", err)
		}
		if math.Float32bits(got) != math.Float32bits(want) {
			t.Errorf("ReadFloat32() bits = 0x%08x, want 0x%08x", math.Float32bits(got), math.Float32bits(want))
		}
	}
	if err := b.ExpectEnd(); err != nil {
		t.Errorf("ExpectEnd() error = %v", err)
	}
}

func TestNaNBitPatternPreserved(t *testing.T) {
	nan := math.Float32frombits(0x7fc00001)
	b := NewBuffer()
	b.PutFloat32(nan)
	got, err := b.ReadFloat32()
	if err != nil {
		t.Fatalf("ReadFloat32() error = %v", err)
	}
	if math.Float32bits(got) != 0x7fc00001 {
		t.Errorf("NaN bits = 0x%08x, want 0x7fc00001", math.Float32bits(got))
	}
}

func TestBigEndianLayout(t *testing.T) {
	b := NewBuffer()
	b.PutUint32(0x0A0B0C0D)
	b.PutInt16(-2)
	b.PutFloat32(1.0)
	b.PutString("01")
	b.PutInt16Array([]int16{1, -1})
	b.PutFloat32Array([]float32{-2})

	want := []byte{
		0x0A, 0x0B, 0x0C, 0x0D,
		0xFF, 0xFE,
		0x3F, 0x80, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x02, '0', '1',
		0x00, 0x00, 0x00, 0x02, 0x00, 0x01, 0xFF, 0xFF,
		0x00, 0x00, 0x00, 0x01, 0xC0, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(b.Bytes(), want) {
		t.Errorf("Bytes() = % x, want % x", b.Bytes(), want)
	}
}

func TestArrayAndStringRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		delays  []float32
		mask    string
	}{
		{name: "empty", samples: []int16{}, delays: []float32{}, mask: ""},
		{name: "boundaries", samples: []int16{math.MinInt16, 0, math.MaxInt16}, delays: []float32{0, -1e-6, 2.5e-7}, mask: "0110"},
		{name: "long mask", samples: make([]int16, 1024), delays: make([]float32, 32), mask: "11111111111111111111111111111111"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer()
			b.PutInt16Array(tt.samples)
			b.PutFloat32Array(tt.delays)
			b.PutString(tt.mask)

			samples, err := b.ReadInt16Array()
			if err != nil {
				t.Fatalf("ReadInt16Array() error = %v", err)
			}
			if len(samples) != len(tt.samples) {
				t.Fatalf("len(samples) = %d, want %d", len(samples), len(tt.samples))
			}
			for i := range samples {
				if samples[i] != tt.samples[i] {
					t.Errorf("samples[%d] = %d, want %d", i, samples[i], tt.samples[i])
				}
			}

			delays, err := b.ReadFloat32ArrayN(len(tt.delays))
			if err != nil {
				t.Fatalf("ReadFloat32ArrayN() error = %v", err)
			}
			for i := range delays {
				if math.Float32bits(delays[i]) != math.Float32bits(tt.delays[i]) {
					t.Errorf("delays[%d] = %v, want %v", i, delays[i], tt.delays[i])
				}
			}

			mask, err := b.ReadString()
			if err != nil {
				t.Fatalf("ReadString() error = %v", err)
			}
			if mask != tt.mask {
				t.Errorf("ReadString() = %q, want %q", mask, tt.mask)
			}
			if b.Remaining() != 0 {
				t.Errorf("Remaining() = %d, want 0", b.Remaining())
			}
		})
	}
}

func TestUnderrunNeverReadsPastEnd(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(b *Buffer) error
	}{
		{"int16 from 1 byte", []byte{0x01}, func(b *Buffer) error { _, err := b.ReadInt16(); return err }},
		{"uint32 from 3 bytes", []byte{1, 2, 3}, func(b *Buffer) error { _, err := b.ReadUint32(); return err }},
		{"float32 from empty", nil, func(b *Buffer) error { _, err := b.ReadFloat32(); return err }},
		{"string shorter than prefix", []byte{0, 0, 0, 5, 'a', 'b'}, func(b *Buffer) error { _, err := b.ReadString(); return err }},
		{"int16 array short", []byte{0, 0, 0, 2, 0, 1}, func(b *Buffer) error { _, err := b.ReadInt16Array(); return err }},
		{"float array short", []byte{0, 0, 0, 1, 0, 0}, func(b *Buffer) error { _, err := b.ReadFloat32Array(); return err }},
		{"huge declared count", []byte{0xFF, 0xFF, 0xFF, 0xFF}, func(b *Buffer) error { _, err := b.ReadFloat32Array(); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer()
			copy(b.Load(len(tt.data)), tt.data)
			before := b.Remaining()

			err := tt.read(b)
			if !errors.Is(err, ErrBufferUnderrun) {
				t.Fatalf("error = %v, want ErrBufferUnderrun", err)
			}
			if b.Remaining() > before || b.Remaining() < 0 {
				t.Errorf("Remaining() = %d after failure, started with %d", b.Remaining(), before)
			}
		})
	}
}

func TestFixedCountMismatch(t *testing.T) {
	b := NewBuffer()
	b.PutInt16Array([]int16{1, 2, 3})
	if _, err := b.ReadInt16ArrayN(4); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("ReadInt16ArrayN(4) error = %v, want ErrSizeMismatch", err)
	}

	b.Reset()
	b.PutFloat32Array([]float32{1})
	if _, err := b.ReadFloat32ArrayN(2); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("ReadFloat32ArrayN(2) error = %v, want ErrSizeMismatch", err)
	}
}

func TestMaxElements(t *testing.T) {
	b := NewBuffer()
	b.MaxElements = 4
	b.PutFloat32Array(make([]float32, 5))
	if _, err := b.ReadFloat32Array(); !errors.Is(err, ErrLengthLimit) {
		t.Errorf("ReadFloat32Array() error = %v, want ErrLengthLimit", err)
	}
}

func TestResetAndExpectEnd(t *testing.T) {
	b := NewBuffer()
	b.PutUint32(7)
	b.PutUint32(8)
	if _, err := b.ReadUint32(); err != nil {
		t.Fatalf("ReadUint32() error = %v", err)
	}
	if err := b.ExpectEnd(); !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("ExpectEnd() error = %v, want ErrTrailingBytes", err)
	}

	b.Reset()
	if b.Len() != 0 || b.Remaining() != 0 {
		t.Errorf("after Reset Len() = %d, Remaining() = %d, want 0, 0", b.Len(), b.Remaining())
	}
	if _, err := b.ReadInt16(); !errors.Is(err, ErrBufferUnderrun) {
		t.Errorf("ReadInt16() on empty buffer error = %v, want ErrBufferUnderrun", err)
	}
}
