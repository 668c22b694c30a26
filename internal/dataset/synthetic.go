package dataset

import "math"

const (
	soundSpeed   = 1540.0 // m/s
	elementPitch = 0.3e-3 // m
	targetDepth  = 20e-3  // m
	burstCycles  = 2.0
)

// Synthetic returns a channels × samples matrix holding the echo of a single
// point target centred under the array, received on a linear array sampled
// at fs. Each channel carries a Gaussian-windowed burst at fc delayed by the
// round-trip time to its element.
func Synthetic(channels, samples int, fs, fc float64) *Matrix {
	m := NewMatrix(channels, samples)
	if fs <= 0 || fc <= 0 {
		return m
	}

	sigma := burstCycles / fc / 2
	center := float64(channels-1) / 2
	for ch := 0; ch < channels; ch++ {
		x := (float64(ch) - center) * elementPitch
		// transmit straight down, receive on element ch
		delay := (targetDepth + math.Hypot(x, targetDepth)) / soundSpeed
		row := m.Row(ch)
		for n := range row {
			t := float64(n)/fs - delay
			env := math.Exp(-(t * t) / (2 * sigma * sigma))
			row[n] = float32(env * math.Cos(2*math.Pi*fc*t))
		}
	}
	return m
}
