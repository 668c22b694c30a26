package device

import "fmt"

// Device is an ultrasound array acquisition device.
type Device interface {
	SignalLength() (uint32, error)
	Signal() ([]int16, error)
	MaxSampleValue() (int16, error)
	MinSampleValue() (int16, error)
	SamplingFrequency() (float32, error)

	SetAcquisitionTime(seconds float32) error
	SetActiveReceiveElements(mask string) error
	SetActiveTransmitElements(mask string) error
	SetBaseElement(element uint32) error
	SetCenterFrequency(hz float32, pulses int) error
	SetGain(db float32) error
	SetReceiveDelays(delays []float32) error
	SetSamplingFrequency(hz float32) error
	SetTransmitDelays(delays []float32) error

	ExecPreConfiguration() error
	ExecPostConfiguration() error
	ExecPreLoopConfiguration() error
	ExecPostLoopConfiguration() error
}

// Error is a domain failure reported by a device operation.
type Error struct {
	Op      string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("device: %s: %s", e.Op, e.Message)
}

func errorf(op, format string, args ...any) *Error {
	return &Error{Op: op, Message: fmt.Sprintf(format, args...)}
}
