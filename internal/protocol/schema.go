package protocol

import (
	"fmt"

	"github.com/muurk/arrayacq/internal/wire"
)

// Kind is the wire encoding of one positional payload field.
type Kind uint8

const (
	KindInt16 Kind = iota + 1
	KindUint32
	KindFloat32
	KindString
	KindFloat32Array
	KindInt16Array
)

func (k Kind) String() string {
	switch k {
	case KindInt16:
		return "int16"
	case KindUint32:
		return "uint32"
	case KindFloat32:
		return "float"
	case KindString:
		return "string"
	case KindFloat32Array:
		return "float[]"
	case KindInt16Array:
		return "int16[]"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Schema describes one request: the fields it carries, the message type of a
// successful reply and the fields of that reply. A zero Response means the
// request is never answered.
type Schema struct {
	Request  Type
	Params   []Kind
	Response Type
	Results  []Kind
}

// ErrorResults is the payload layout of ERROR_RESPONSE.
var ErrorResults = []Kind{KindString}

// Schemas maps every request type to its layout. It is the single description
// of the payload order shared by the server, the client and the tests.
var Schemas = map[Type]Schema{
	ConnectRequest:    {Request: ConnectRequest, Params: []Kind{KindUint32}, Response: OKResponse},
	DisconnectRequest: {Request: DisconnectRequest},

	GetSignalLengthRequest:      {Request: GetSignalLengthRequest, Response: GetSignalLengthResponse, Results: []Kind{KindUint32}},
	GetSignalRequest:            {Request: GetSignalRequest, Response: GetSignalResponse, Results: []Kind{KindInt16Array}},
	GetMaxSampleValueRequest:    {Request: GetMaxSampleValueRequest, Response: GetMaxSampleValueResponse, Results: []Kind{KindInt16}},
	GetMinSampleValueRequest:    {Request: GetMinSampleValueRequest, Response: GetMinSampleValueResponse, Results: []Kind{KindInt16}},
	GetSamplingFrequencyRequest: {Request: GetSamplingFrequencyRequest, Response: GetSamplingFrequencyResponse, Results: []Kind{KindFloat32}},

	SetAcquisitionTimeRequest:        {Request: SetAcquisitionTimeRequest, Params: []Kind{KindFloat32}, Response: OKResponse},
	SetActiveReceiveElementsRequest:  {Request: SetActiveReceiveElementsRequest, Params: []Kind{KindString}, Response: OKResponse},
	SetActiveTransmitElementsRequest: {Request: SetActiveTransmitElementsRequest, Params: []Kind{KindString}, Response: OKResponse},
	SetBaseElementRequest:            {Request: SetBaseElementRequest, Params: []Kind{KindUint32}, Response: OKResponse},
	SetCenterFrequencyRequest:        {Request: SetCenterFrequencyRequest, Params: []Kind{KindFloat32, KindUint32}, Response: OKResponse},
	SetGainRequest:                   {Request: SetGainRequest, Params: []Kind{KindFloat32}, Response: OKResponse},
	SetReceiveDelaysRequest:          {Request: SetReceiveDelaysRequest, Params: []Kind{KindFloat32Array}, Response: OKResponse},
	SetSamplingFrequencyRequest:      {Request: SetSamplingFrequencyRequest, Params: []Kind{KindFloat32}, Response: OKResponse},
	SetTransmitDelaysRequest:         {Request: SetTransmitDelaysRequest, Params: []Kind{KindFloat32Array}, Response: OKResponse},

	ExecPreConfigurationRequest:      {Request: ExecPreConfigurationRequest, Response: OKResponse},
	ExecPostConfigurationRequest:     {Request: ExecPostConfigurationRequest, Response: OKResponse},
	ExecPreLoopConfigurationRequest:  {Request: ExecPreLoopConfigurationRequest, Response: OKResponse},
	ExecPostLoopConfigurationRequest: {Request: ExecPostLoopConfigurationRequest, Response: OKResponse},
}

// Lookup returns the schema of a request type.
func Lookup(t Type) (Schema, bool) {
	s, ok := Schemas[t]
	return s, ok
}

// Values holds decoded fields in schema order. The accessors panic if the
// value at i has a different Go type, which only happens when a caller reads
// a field against the wrong schema.
type Values []any

func (v Values) Int16(i int) int16            { return v[i].(int16) }
func (v Values) Uint32(i int) uint32          { return v[i].(uint32) }
func (v Values) Float32(i int) float32        { return v[i].(float32) }
func (v Values) Text(i int) string            { return v[i].(string) }
func (v Values) Float32Array(i int) []float32 { return v[i].([]float32) }
func (v Values) Int16Array(i int) []int16     { return v[i].([]int16) }

// Decode reads one value per kind from b, in order.
func Decode(b *wire.Buffer, kinds []Kind) (Values, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	out := make(Values, 0, len(kinds))
	for i, k := range kinds {
		var (
			v   any
			err error
		)
		switch k {
		case KindInt16:
			v, err = b.ReadInt16()
		case KindUint32:
			v, err = b.ReadUint32()
		case KindFloat32:
			v, err = b.ReadFloat32()
		case KindString:
			v, err = b.ReadString()
		case KindFloat32Array:
			v, err = b.ReadFloat32Array()
		case KindInt16Array:
			v, err = b.ReadInt16Array()
		default:
			return nil, fmt.Errorf("protocol: field %d: unsupported kind %s", i, k)
		}
		if err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", i, k, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Encode appends values to b following kinds. The number and Go types of the
// values must match the kinds.
func Encode(b *wire.Buffer, kinds []Kind, values ...any) error {
	if len(values) != len(kinds) {
		return fmt.Errorf("protocol: got %d values for %d fields", len(values), len(kinds))
	}
	for i, k := range kinds {
		ok := true
		switch k {
		case KindInt16:
			var v int16
			if v, ok = values[i].(int16); ok {
				b.PutInt16(v)
			}
		case KindUint32:
			var v uint32
			if v, ok = values[i].(uint32); ok {
				b.PutUint32(v)
			}
		case KindFloat32:
			var v float32
			if v, ok = values[i].(float32); ok {
				b.PutFloat32(v)
			}
		case KindString:
			var v string
			if v, ok = values[i].(string); ok {
				b.PutString(v)
			}
		case KindFloat32Array:
			var v []float32
			if v, ok = values[i].([]float32); ok {
				b.PutFloat32Array(v)
			}
		case KindInt16Array:
			var v []int16
			if v, ok = values[i].([]int16); ok {
				b.PutInt16Array(v)
			}
		default:
			return fmt.Errorf("protocol: field %d: unsupported kind %s", i, k)
		}
		if !ok {
			return fmt.Errorf("protocol: field %d: %T is not %s", i, values[i], k)
		}
	}
	return nil
}
