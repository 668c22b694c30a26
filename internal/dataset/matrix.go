package dataset

import (
	"errors"
	"fmt"
	"math"
)

// ErrShape is returned for matrices whose data does not match their size.
var ErrShape = errors.New("dataset: data size does not match shape")

// Matrix is a row-major channels × samples matrix.
type Matrix struct {
	Channels int
	Samples  int
	Data     []float32
}

// NewMatrix allocates a zeroed matrix.
func NewMatrix(channels, samples int) *Matrix {
	return &Matrix{
		Channels: channels,
		Samples:  samples,
		Data:     make([]float32, channels*samples),
	}
}

// Validate checks the shape against the data length.
func (m *Matrix) Validate() error {
	if m.Channels <= 0 || m.Samples <= 0 {
		return fmt.Errorf("%w: %d x %d", ErrShape, m.Channels, m.Samples)
	}
	if len(m.Data) != m.Channels*m.Samples {
		return fmt.Errorf("%w: %d values for %d x %d", ErrShape, len(m.Data), m.Channels, m.Samples)
	}
	return nil
}

// Row returns the samples of one channel. The slice aliases the matrix.
func (m *Matrix) Row(ch int) []float32 {
	return m.Data[ch*m.Samples : (ch+1)*m.Samples]
}

// MaxAbs returns the largest absolute value.
func (m *Matrix) MaxAbs() float32 {
	var peak float32
	for _, v := range m.Data {
		if a := float32(math.Abs(float64(v))); a > peak {
			peak = a
		}
	}
	return peak
}

// Normalize scales the matrix to a peak absolute value of 1. An all-zero
// matrix is left unchanged.
func (m *Matrix) Normalize() {
	peak := m.MaxAbs()
	if peak == 0 {
		return
	}
	m.Scale(1 / peak)
}

// Scale multiplies every value by k.
func (m *Matrix) Scale(k float32) {
	for i := range m.Data {
		m.Data[i] *= k
	}
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{Channels: m.Channels, Samples: m.Samples, Data: make([]float32, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}
