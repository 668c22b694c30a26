package device

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/muurk/arrayacq/internal/dataset"
)

func newTestDevice(t *testing.T, channels, samples, mux int) *Simulated {
	t.Helper()
	m := dataset.NewMatrix(channels, samples)
	for i := range m.Data {
		m.Data[i] = float32(i%7) - 3
	}
	d, err := NewSimulated(m, Config{MuxChannels: mux, SamplingFrequency: 40e6, Pause: -1, Seed: 1})
	if err != nil {
		t.Fatalf("NewSimulated() error = %v", err)
	}
	return d
}

func TestSimulatedSignal(t *testing.T) {
	d := newTestDevice(t, 4, 16, 0)

	n, err := d.SignalLength()
	if err != nil || n != 16 {
		t.Errorf("SignalLength() = %d, %v, want 16", n, err)
	}

	sig, err := d.Signal()
	if err != nil {
		t.Fatalf("Signal() error = %v", err)
	}
	if len(sig) != 4*16 {
		t.Fatalf("len(Signal()) = %d, want 64", len(sig))
	}

	// Peak is scaled to half the positive range; noise adds at most ~10 counts.
	const peak = 0.5 * 2047
	for i, v := range sig {
		if math.Abs(float64(v)) > peak+11 {
			t.Errorf("sample %d = %d exceeds %v", i, v, peak+11)
		}
	}
	if sig[6] < 1024-11 || sig[6] > 1024+11 {
		t.Errorf("sample at dataset peak = %d, want about 1024", sig[6])
	}

	if got := d.Settings().Acquisitions; got != 1 {
		t.Errorf("Acquisitions = %d, want 1", got)
	}
}

func TestSimulatedSampleRange(t *testing.T) {
	d := newTestDevice(t, 1, 1, 0)
	maxV, _ := d.MaxSampleValue()
	minV, _ := d.MinSampleValue()
	if maxV != 2047 || minV != -2048 {
		t.Errorf("sample range = [%d, %d], want [-2048, 2047]", minV, maxV)
	}
}

func TestSimulatedSamplingFrequency(t *testing.T) {
	d := newTestDevice(t, 2, 4, 0)
	if fs, _ := d.SamplingFrequency(); fs != 40e6 {
		t.Errorf("initial SamplingFrequency() = %v, want 40e6", fs)
	}
	if err := d.SetSamplingFrequency(25e6); err != nil {
		t.Fatalf("SetSamplingFrequency() error = %v", err)
	}
	if fs, _ := d.SamplingFrequency(); fs != 25e6 {
		t.Errorf("SamplingFrequency() = %v, want 25e6", fs)
	}
}

func TestSimulatedValidation(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name    string
		call    func(d *Simulated) error
		wantErr string
	}{
		{"gain in range", func(d *Simulated) error { return d.SetGain(60) }, ""},
		{"gain too high", func(d *Simulated) error { return d.SetGain(60.5) }, "Invalid gain"},
		{"gain negative", func(d *Simulated) error { return d.SetGain(-1) }, "Invalid gain"},
		{"gain NaN", func(d *Simulated) error { return d.SetGain(nan) }, "Invalid gain"},
		{"mask ok", func(d *Simulated) error { return d.SetActiveReceiveElements("0110") }, ""},
		{"mask length", func(d *Simulated) error { return d.SetActiveReceiveElements("011") }, "Invalid mask length"},
		{"mask character", func(d *Simulated) error { return d.SetActiveTransmitElements("01x0") }, "Invalid character"},
		{"base element max", func(d *Simulated) error { return d.SetBaseElement(28) }, ""},
		{"base element over", func(d *Simulated) error { return d.SetBaseElement(29) }, "Invalid base element"},
		{"center frequency", func(d *Simulated) error { return d.SetCenterFrequency(5e6, 2) }, ""},
		{"center frequency zero", func(d *Simulated) error { return d.SetCenterFrequency(0, 2) }, "Invalid center frequency"},
		{"pulses zero", func(d *Simulated) error { return d.SetCenterFrequency(5e6, 0) }, "Invalid number of pulses"},
		{"acquisition time", func(d *Simulated) error { return d.SetAcquisitionTime(1e-4) }, ""},
		{"acquisition time zero", func(d *Simulated) error { return d.SetAcquisitionTime(0) }, "Invalid acquisition time"},
		{"sampling frequency inf", func(d *Simulated) error { return d.SetSamplingFrequency(float32(math.Inf(1))) }, "Invalid sampling frequency"},
		{"delays ok", func(d *Simulated) error { return d.SetReceiveDelays([]float32{0, 1e-7, 2e-7, 3e-7}) }, ""},
		{"delays count", func(d *Simulated) error { return d.SetTransmitDelays([]float32{0}) }, "Invalid number of delays"},
		{"delay negative", func(d *Simulated) error { return d.SetTransmitDelays([]float32{0, -1, 0, 0}) }, "Invalid delay at index 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDevice(t, 4, 8, 32)
			err := tt.call(d)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("error = %v, want nil", err)
				}
				return
			}
			var derr *Error
			if !errors.As(err, &derr) {
				t.Fatalf("error = %v, want *device.Error", err)
			}
			if !strings.Contains(derr.Message, tt.wantErr) {
				t.Errorf("Message = %q, want it to contain %q", derr.Message, tt.wantErr)
			}
		})
	}
}

func TestSimulatedSettingsSnapshot(t *testing.T) {
	d := newTestDevice(t, 2, 4, 0)
	delays := []float32{1e-7, 2e-7}
	if err := d.SetReceiveDelays(delays); err != nil {
		t.Fatalf("SetReceiveDelays() error = %v", err)
	}
	if err := d.SetCenterFrequency(3e6, 4); err != nil {
		t.Fatalf("SetCenterFrequency() error = %v", err)
	}
	delays[0] = 9

	s := d.Settings()
	if s.ReceiveDelays[0] != 1e-7 {
		t.Errorf("ReceiveDelays[0] = %v, device must copy its input", s.ReceiveDelays[0])
	}
	if s.CenterFrequency != 3e6 || s.Pulses != 4 {
		t.Errorf("center frequency = %v/%d, want 3e6/4", s.CenterFrequency, s.Pulses)
	}
	if s.Channels != 2 || s.SignalLength != 4 || s.MuxChannels != 2 {
		t.Errorf("shape = %+v", s)
	}
}

func TestSimulatedConfigurationPhases(t *testing.T) {
	d := newTestDevice(t, 1, 1, 0)

	steps := []struct {
		call  func() error
		ok    bool
		phase string
	}{
		{d.ExecPostConfiguration, false, "idle"},
		{d.ExecPreConfiguration, true, "pre-configured"},
		{d.ExecPreLoopConfiguration, false, "pre-configured"},
		{d.ExecPostConfiguration, true, "configured"},
		{d.ExecPreLoopConfiguration, true, "looping"},
		{d.ExecPreConfiguration, false, "looping"},
		{d.ExecPostLoopConfiguration, true, "configured"},
		{d.ExecPreConfiguration, true, "pre-configured"},
	}
	for i, s := range steps {
		err := s.call()
		if (err == nil) != s.ok {
			t.Errorf("step %d: error = %v, want ok=%v", i, err, s.ok)
		}
		if got := d.Settings().Phase; got != s.phase {
			t.Errorf("step %d: phase = %s, want %s", i, got, s.phase)
		}
	}
}

func TestSimulatedReset(t *testing.T) {
	d := newTestDevice(t, 1, 1, 0)
	if err := d.SetGain(12); err != nil {
		t.Fatalf("SetGain() error = %v", err)
	}
	for _, call := range []func() error{d.ExecPreConfiguration, d.ExecPostConfiguration, d.ExecPreLoopConfiguration} {
		if err := call(); err != nil {
			t.Fatalf("exec error = %v", err)
		}
	}

	d.Reset()
	got := d.Settings()
	if got.Phase != "idle" {
		t.Errorf("phase after Reset() = %s, want idle", got.Phase)
	}
	if got.Gain != 12 {
		t.Errorf("gain after Reset() = %g, want 12", got.Gain)
	}
	if err := d.ExecPreConfiguration(); err != nil {
		t.Errorf("ExecPreConfiguration() after Reset() error = %v", err)
	}
}

func TestNewSimulatedRejectsBadInput(t *testing.T) {
	if _, err := NewSimulated(&dataset.Matrix{Channels: 2, Samples: 2}, Config{}); !errors.Is(err, dataset.ErrShape) {
		t.Errorf("NewSimulated(empty) error = %v, want ErrShape", err)
	}
	if _, err := NewSimulated(dataset.NewMatrix(8, 2), Config{MuxChannels: 4}); err == nil {
		t.Error("NewSimulated(mux < channels) error = nil, want error")
	}
}

func TestErrorString(t *testing.T) {
	err := &Error{Op: "SetGain", Message: "Invalid gain: 70 dB."}
	if err.Error() != "device: SetGain: Invalid gain: 70 dB." {
		t.Errorf("Error() = %q", err.Error())
	}
}
