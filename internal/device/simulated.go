package device

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/arrayacq/internal/dataset"
	"github.com/muurk/arrayacq/internal/logging"
)

const (
	// MaxSample and MinSample bound the 12-bit sample range.
	MaxSample int16 = 2047
	MinSample int16 = -2048

	signalScale = 0.5
	noiseLevel  = 0.005

	// MaxGain is the upper gain limit in dB.
	MaxGain = 60.0

	// DefaultPause is the delay after each acquisition.
	DefaultPause = time.Millisecond
)

// Config configures a Simulated device.
type Config struct {
	// MuxChannels is the number of physical elements behind the
	// multiplexer. Zero means the dataset channel count.
	MuxChannels int
	// SamplingFrequency is reported until a client sets one.
	SamplingFrequency float32
	// Pause follows every Signal call. Zero means DefaultPause; negative
	// disables it.
	Pause time.Duration
	// Seed makes the noise sequence reproducible. Zero picks a random seed.
	Seed uint64
}

type phase int

const (
	phaseIdle phase = iota
	phasePreConfigured
	phaseConfigured
	phaseLooping
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phasePreConfigured:
		return "pre-configured"
	case phaseConfigured:
		return "configured"
	case phaseLooping:
		return "looping"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Settings is a snapshot of the values last set by a client.
type Settings struct {
	Channels          int       `json:"channels"`
	SignalLength      int       `json:"signal_length"`
	MuxChannels       int       `json:"mux_channels"`
	SamplingFrequency float32   `json:"sampling_frequency"`
	AcquisitionTime   float32   `json:"acquisition_time"`
	ReceiveMask       string    `json:"receive_mask"`
	TransmitMask      string    `json:"transmit_mask"`
	BaseElement       uint32    `json:"base_element"`
	CenterFrequency   float32   `json:"center_frequency"`
	Pulses            int       `json:"pulses"`
	Gain              float32   `json:"gain"`
	ReceiveDelays     []float32 `json:"receive_delays,omitempty"`
	TransmitDelays    []float32 `json:"transmit_delays,omitempty"`
	Phase             string    `json:"phase"`
	Acquisitions      uint64    `json:"acquisitions"`
}

// Simulated replays a dataset as if it were acquired by a real array.
type Simulated struct {
	mu sync.Mutex

	raw      []float32
	channels int
	samples  int
	mux      int
	buf      []int16
	rng      *rand.Rand
	pause    time.Duration

	fs           float32
	acqTime      float32
	rxMask       string
	txMask       string
	base         uint32
	fc           float32
	pulses       int
	gain         float32
	rxDelays     []float32
	txDelays     []float32
	phase        phase
	acquisitions uint64
}

var _ Device = (*Simulated)(nil)

// NewSimulated builds a device from m. The matrix is copied, normalised to a
// peak of 1 and scaled to half the positive sample range.
func NewSimulated(m *dataset.Matrix, cfg Config) (*Simulated, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("device: %w", err)
	}

	mux := cfg.MuxChannels
	if mux == 0 {
		mux = m.Channels
	}
	if mux < m.Channels {
		return nil, fmt.Errorf("device: %d mux channels is fewer than %d dataset channels", mux, m.Channels)
	}

	pause := cfg.Pause
	if pause == 0 {
		pause = DefaultPause
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	data := m.Clone()
	data.Normalize()
	data.Scale(signalScale * float32(MaxSample))

	logging.Debug("Simulated device created",
		zap.Int("channels", m.Channels),
		zap.Int("samples", m.Samples),
		zap.Int("mux_channels", mux),
	)

	return &Simulated{
		raw:      data.Data,
		channels: m.Channels,
		samples:  m.Samples,
		mux:      mux,
		buf:      make([]int16, len(data.Data)),
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		pause:    pause,
		fs:       cfg.SamplingFrequency,
	}, nil
}

// Signal returns one acquisition of all channels, row by row. The returned
// slice is reused by the next call.
func (d *Simulated) Signal() ([]int16, error) {
	d.mu.Lock()
	lo := noiseLevel * float64(MinSample)
	hi := noiseLevel * float64(MaxSample)
	for i, v := range d.raw {
		noise := lo + d.rng.Float64()*(hi-lo)
		d.buf[i] = int16(math.Round(float64(v)) + noise)
	}
	d.acquisitions++
	out := d.buf
	d.mu.Unlock()

	logging.Debug("getSignal()", zap.Int("samples", len(out)))
	if d.pause > 0 {
		time.Sleep(d.pause)
	}
	return out, nil
}

// SignalLength returns the number of samples per channel.
func (d *Simulated) SignalLength() (uint32, error) {
	logging.Debug("getSignalLength()", zap.Int("value", d.samples))
	return uint32(d.samples), nil
}

// MaxSampleValue returns the largest sample the device produces.
func (d *Simulated) MaxSampleValue() (int16, error) { return MaxSample, nil }

// MinSampleValue returns the smallest sample the device produces.
func (d *Simulated) MinSampleValue() (int16, error) { return MinSample, nil }

// SamplingFrequency returns the configured sampling frequency in Hz.
func (d *Simulated) SamplingFrequency() (float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fs, nil
}

// SetAcquisitionTime sets the acquisition window in seconds.
func (d *Simulated) SetAcquisitionTime(seconds float32) error {
	if !(seconds > 0) || isInf(seconds) {
		return errorf("SetAcquisitionTime", "Invalid acquisition time: %g s.", seconds)
	}
	d.mu.Lock()
	d.acqTime = seconds
	d.mu.Unlock()
	logging.Debug("setAcquisitionTime()", zap.Float32("value", seconds))
	return nil
}

// SetActiveReceiveElements sets the receive mask. Each character is '0' or '1'.
func (d *Simulated) SetActiveReceiveElements(mask string) error {
	if err := d.checkMask("SetActiveReceiveElements", mask); err != nil {
		return err
	}
	d.mu.Lock()
	d.rxMask = mask
	d.mu.Unlock()
	logging.Debug("setActiveReceiveElements()", zap.String("mask", mask))
	return nil
}

// SetActiveTransmitElements sets the transmit mask.
func (d *Simulated) SetActiveTransmitElements(mask string) error {
	if err := d.checkMask("SetActiveTransmitElements", mask); err != nil {
		return err
	}
	d.mu.Lock()
	d.txMask = mask
	d.mu.Unlock()
	logging.Debug("setActiveTransmitElements()", zap.String("mask", mask))
	return nil
}

// SetBaseElement selects the first multiplexer element.
func (d *Simulated) SetBaseElement(element uint32) error {
	limit := uint32(d.mux - d.channels)
	if element > limit {
		return errorf("SetBaseElement", "Invalid base element: %d (valid range: 0 to %d).", element, limit)
	}
	d.mu.Lock()
	d.base = element
	d.mu.Unlock()
	logging.Debug("setBaseElement()", zap.Uint32("value", element))
	return nil
}

// SetCenterFrequency sets the pulse center frequency and pulse count.
func (d *Simulated) SetCenterFrequency(hz float32, pulses int) error {
	if !(hz > 0) || isInf(hz) {
		return errorf("SetCenterFrequency", "Invalid center frequency: %g Hz.", hz)
	}
	if pulses < 1 {
		return errorf("SetCenterFrequency", "Invalid number of pulses: %d.", pulses)
	}
	d.mu.Lock()
	d.fc = hz
	d.pulses = pulses
	d.mu.Unlock()
	logging.Debug("setCenterFrequency()", zap.Float32("fc", hz), zap.Int("pulses", pulses))
	return nil
}

// SetGain sets the receive gain in dB.
func (d *Simulated) SetGain(db float32) error {
	if !(db >= 0 && db <= MaxGain) {
		return errorf("SetGain", "Invalid gain: %g dB (valid range: 0 to %g dB).", db, MaxGain)
	}
	d.mu.Lock()
	d.gain = db
	d.mu.Unlock()
	logging.Debug("setGain()", zap.Float32("value", db))
	return nil
}

// SetReceiveDelays sets one receive delay per channel.
func (d *Simulated) SetReceiveDelays(delays []float32) error {
	if err := d.checkDelays("SetReceiveDelays", delays); err != nil {
		return err
	}
	d.mu.Lock()
	d.rxDelays = append(d.rxDelays[:0], delays...)
	d.mu.Unlock()
	logging.Debug("setReceiveDelays()", zap.Float32s("delays", delays))
	return nil
}

// SetSamplingFrequency sets the sampling frequency in Hz.
func (d *Simulated) SetSamplingFrequency(hz float32) error {
	if !(hz > 0) || isInf(hz) {
		return errorf("SetSamplingFrequency", "Invalid sampling frequency: %g Hz.", hz)
	}
	d.mu.Lock()
	d.fs = hz
	d.mu.Unlock()
	logging.Debug("setSamplingFrequency()", zap.Float32("value", hz))
	return nil
}

// SetTransmitDelays sets one transmit delay per channel.
func (d *Simulated) SetTransmitDelays(delays []float32) error {
	if err := d.checkDelays("SetTransmitDelays", delays); err != nil {
		return err
	}
	d.mu.Lock()
	d.txDelays = append(d.txDelays[:0], delays...)
	d.mu.Unlock()
	logging.Debug("setTransmitDelays()", zap.Float32s("delays", delays))
	return nil
}

// ExecPreConfiguration starts a configuration block. It is rejected while
// an acquisition loop is open.
func (d *Simulated) ExecPreConfiguration() error {
	return d.advance("ExecPreConfiguration", phasePreConfigured, phaseIdle, phaseConfigured)
}

// ExecPostConfiguration closes a configuration block.
func (d *Simulated) ExecPostConfiguration() error {
	return d.advance("ExecPostConfiguration", phaseConfigured, phasePreConfigured)
}

// ExecPreLoopConfiguration opens an acquisition loop.
func (d *Simulated) ExecPreLoopConfiguration() error {
	return d.advance("ExecPreLoopConfiguration", phaseLooping, phaseConfigured)
}

// ExecPostLoopConfiguration closes an acquisition loop.
func (d *Simulated) ExecPostLoopConfiguration() error {
	return d.advance("ExecPostLoopConfiguration", phaseConfigured, phaseLooping)
}

// Reset returns the configuration sequence to idle. Settings are kept.
func (d *Simulated) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != phaseIdle {
		logging.Debug("reset()", zap.Stringer("from", d.phase))
	}
	d.phase = phaseIdle
}

func (d *Simulated) advance(op string, to phase, from ...phase) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range from {
		if d.phase == p {
			logging.Debug(op+"()", zap.Stringer("from", d.phase), zap.Stringer("to", to))
			d.phase = to
			return nil
		}
	}
	return errorf(op, "Invalid configuration sequence: %s while %s.", op, d.phase)
}

// Settings returns a snapshot of the current configuration.
func (d *Simulated) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Settings{
		Channels:          d.channels,
		SignalLength:      d.samples,
		MuxChannels:       d.mux,
		SamplingFrequency: d.fs,
		AcquisitionTime:   d.acqTime,
		ReceiveMask:       d.rxMask,
		TransmitMask:      d.txMask,
		BaseElement:       d.base,
		CenterFrequency:   d.fc,
		Pulses:            d.pulses,
		Gain:              d.gain,
		ReceiveDelays:     append([]float32(nil), d.rxDelays...),
		TransmitDelays:    append([]float32(nil), d.txDelays...),
		Phase:             d.phase.String(),
		Acquisitions:      d.acquisitions,
	}
}

func (d *Simulated) checkMask(op, mask string) error {
	if len(mask) != d.channels {
		return errorf(op, "Invalid mask length: %d (expected: %d).", len(mask), d.channels)
	}
	for i := 0; i < len(mask); i++ {
		if mask[i] != '0' && mask[i] != '1' {
			return errorf(op, "Invalid character in mask: %q at position %d.", mask[i], i)
		}
	}
	return nil
}

func (d *Simulated) checkDelays(op string, delays []float32) error {
	if len(delays) != d.channels {
		return errorf(op, "Invalid number of delays: %d (expected: %d).", len(delays), d.channels)
	}
	for i, v := range delays {
		if !(v >= 0) || isInf(v) {
			return errorf(op, "Invalid delay at index %d: %g s.", i, v)
		}
	}
	return nil
}

func isInf(v float32) bool {
	return math.IsInf(float64(v), 0)
}
