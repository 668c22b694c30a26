package protocol

import "fmt"

// Version is the protocol version a client must send in CONNECT_REQUEST.
const Version uint32 = 1006

// HeaderSize is the fixed frame header length in bytes.
const HeaderSize = 8

// Type identifies a message frame.
type Type uint32

// Message types. The numbering is part of the wire format.
const (
	ConnectRequest Type = 2001 + iota
	DisconnectRequest

	OKResponse
	ErrorResponse

	GetSignalLengthRequest
	GetSignalLengthResponse
	GetSignalRequest
	GetSignalResponse
	GetMaxSampleValueRequest
	GetMaxSampleValueResponse
	GetMinSampleValueRequest
	GetMinSampleValueResponse
	GetSamplingFrequencyRequest
	GetSamplingFrequencyResponse

	SetAcquisitionTimeRequest
	SetActiveReceiveElementsRequest
	SetActiveTransmitElementsRequest
	SetBaseElementRequest
	SetCenterFrequencyRequest
	SetGainRequest
	SetReceiveDelaysRequest
	SetSamplingFrequencyRequest
	SetTransmitDelaysRequest

	ExecPreConfigurationRequest
	ExecPostConfigurationRequest
	ExecPreLoopConfigurationRequest
	ExecPostLoopConfigurationRequest
)

var typeNames = map[Type]string{
	ConnectRequest:                   "CONNECT_REQUEST",
	DisconnectRequest:                "DISCONNECT_REQUEST",
	OKResponse:                       "OK_RESPONSE",
	ErrorResponse:                    "ERROR_RESPONSE",
	GetSignalLengthRequest:           "GET_SIGNAL_LENGTH_REQUEST",
	GetSignalLengthResponse:          "GET_SIGNAL_LENGTH_RESPONSE",
	GetSignalRequest:                 "GET_SIGNAL_REQUEST",
	GetSignalResponse:                "GET_SIGNAL_RESPONSE",
	GetMaxSampleValueRequest:         "GET_MAX_SAMPLE_VALUE_REQUEST",
	GetMaxSampleValueResponse:        "GET_MAX_SAMPLE_VALUE_RESPONSE",
	GetMinSampleValueRequest:         "GET_MIN_SAMPLE_VALUE_REQUEST",
	GetMinSampleValueResponse:        "GET_MIN_SAMPLE_VALUE_RESPONSE",
	GetSamplingFrequencyRequest:      "GET_SAMPLING_FREQUENCY_REQUEST",
	GetSamplingFrequencyResponse:     "GET_SAMPLING_FREQUENCY_RESPONSE",
	SetAcquisitionTimeRequest:        "SET_ACQUISITION_TIME_REQUEST",
	SetActiveReceiveElementsRequest:  "SET_ACTIVE_RECEIVE_ELEMENTS_REQUEST",
	SetActiveTransmitElementsRequest: "SET_ACTIVE_TRANSMIT_ELEMENTS_REQUEST",
	SetBaseElementRequest:            "SET_BASE_ELEMENT_REQUEST",
	SetCenterFrequencyRequest:        "SET_CENTER_FREQUENCY_REQUEST",
	SetGainRequest:                   "SET_GAIN_REQUEST",
	SetReceiveDelaysRequest:          "SET_RECEIVE_DELAYS_REQUEST",
	SetSamplingFrequencyRequest:      "SET_SAMPLING_FREQUENCY_REQUEST",
	SetTransmitDelaysRequest:         "SET_TRANSMIT_DELAYS_REQUEST",
	ExecPreConfigurationRequest:      "EXEC_PRE_CONFIGURATION_REQUEST",
	ExecPostConfigurationRequest:     "EXEC_POST_CONFIGURATION_REQUEST",
	ExecPreLoopConfigurationRequest:  "EXEC_PRE_LOOP_CONFIGURATION_REQUEST",
	ExecPostLoopConfigurationRequest: "EXEC_POST_LOOP_CONFIGURATION_REQUEST",
}

// String returns the protocol name of the type, or unknown(N).
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}

// Known reports whether t is part of the protocol.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}
