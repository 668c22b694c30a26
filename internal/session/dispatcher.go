package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/muurk/arrayacq/internal/device"
	"github.com/muurk/arrayacq/internal/logging"
	"github.com/muurk/arrayacq/internal/metrics"
	"github.com/muurk/arrayacq/internal/protocol"
)

const tracerName = "github.com/muurk/arrayacq/internal/session"

// Stats are cumulative counters across all sessions run by a Dispatcher.
type Stats struct {
	Sessions       uint64 `json:"sessions"`
	Requests       uint64 `json:"requests"`
	ErrorResponses uint64 `json:"error_responses"`
}

// Dispatcher serves the acquisition protocol for a device. One Dispatcher can
// run any number of sessions, one after another.
type Dispatcher struct {
	dev     device.Device
	limits  protocol.Limits
	metrics *metrics.Metrics
	tracer  trace.Tracer

	sessions       atomic.Uint64
	requests       atomic.Uint64
	errorResponses atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLimits sets the frame limits applied to received messages.
func WithLimits(l protocol.Limits) Option {
	return func(d *Dispatcher) { d.limits = l }
}

// WithMetrics records session and request metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// New creates a Dispatcher for dev.
func New(dev device.Device, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		dev:    dev,
		limits: protocol.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// Stats returns the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sessions:       d.sessions.Load(),
		Requests:       d.requests.Load(),
		ErrorResponses: d.errorResponses.Load(),
	}
}

// Run serves one session on conn until DISCONNECT_REQUEST, which returns nil,
// or a fatal error, which is returned. Run does not close conn.
func (d *Dispatcher) Run(ctx context.Context, conn io.ReadWriter) (err error) {
	remote := remoteAddr(conn)

	ctx, span := d.tracer.Start(ctx, "arrayacq.session",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.addr", remote)),
	)
	d.sessions.Add(1)
	d.metrics.SessionStarted()
	defer func() {
		kind := Kind(err)
		d.metrics.SessionEnded(kind)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
		}
		span.End()
	}()

	if r, ok := d.dev.(resetter); ok {
		r.Reset()
	}

	s := &session{
		d:      d,
		conn:   conn,
		remote: remote,
		msg:    protocol.NewMessage(d.limits),
	}
	return s.loop(ctx)
}

// resetter is implemented by devices that keep per-session state.
type resetter interface {
	Reset()
}

type session struct {
	d      *Dispatcher
	conn   io.ReadWriter
	remote string
	msg    *protocol.Message
}

func (s *session) loop(ctx context.Context) error {
	for {
		typ, err := s.msg.Receive(s.conn)
		if err != nil {
			return err
		}
		s.d.metrics.AddReceived(protocol.HeaderSize + s.msg.Payload.Len())
		logging.LogMessage(s.remote, "received", typ.String(), s.msg.Payload.Bytes())

		done, err := s.handle(ctx, typ)
		if err != nil || done {
			return err
		}
	}
}

// handle processes the request in s.msg. It reports done for DISCONNECT.
func (s *session) handle(ctx context.Context, typ protocol.Type) (done bool, err error) {
	schema, ok := protocol.Lookup(typ)
	if !ok {
		logging.Error("Invalid request",
			zap.String("remote_addr", s.remote),
			zap.Uint32("message_type", uint32(typ)),
		)
		return false, &ProtocolViolation{Type: typ}
	}

	args, err := protocol.Decode(s.msg.Payload, schema.Params)
	if err != nil {
		return false, fmt.Errorf("session: decode %s: %w", typ, err)
	}
	if err := s.msg.Payload.ExpectEnd(); err != nil {
		return false, fmt.Errorf("session: decode %s: %w", typ, err)
	}

	if typ == protocol.DisconnectRequest {
		logging.LogConnection(s.remote, "disconnect_requested")
		return true, nil
	}

	s.d.requests.Add(1)
	_, span := s.d.tracer.Start(ctx, "arrayacq.request",
		trace.WithAttributes(attribute.String("arrayacq.message_type", typ.String())),
	)
	defer span.End()

	start := time.Now()
	results, callErr := s.d.call(typ, args)
	elapsed := time.Since(start)

	if callErr != nil {
		text := errorText(callErr)
		s.d.errorResponses.Add(1)
		s.d.metrics.ObserveRequest(typ.String(), metrics.ResultError, elapsed)
		span.SetStatus(codes.Error, text)
		logging.Warn("Request failed",
			zap.String("remote_addr", s.remote),
			zap.Stringer("message_type", typ),
			zap.String("error", text),
		)

		s.msg.Prepare(protocol.ErrorResponse)
		s.msg.Payload.PutString(text)
		return false, s.send()
	}

	s.d.metrics.ObserveRequest(typ.String(), metrics.ResultOK, elapsed)
	s.msg.Prepare(schema.Response)
	if err := protocol.Encode(s.msg.Payload, schema.Results, results...); err != nil {
		return false, fmt.Errorf("session: encode %s: %w", schema.Response, err)
	}
	return false, s.send()
}

func (s *session) send() error {
	if err := s.msg.Send(s.conn); err != nil {
		return err
	}
	s.d.metrics.AddSent(protocol.HeaderSize + s.msg.Payload.Len())
	logging.LogMessage(s.remote, "sent", s.msg.Type().String(), s.msg.Payload.Bytes())
	return nil
}

// call invokes the device operation for typ and returns the reply fields.
func (d *Dispatcher) call(typ protocol.Type, args protocol.Values) ([]any, error) {
	switch typ {
	case protocol.ConnectRequest:
		if args.Uint32(0) != protocol.Version {
			return nil, rejection(InvalidVersionMessage)
		}
		return nil, nil

	case protocol.GetSignalLengthRequest:
		return one(d.dev.SignalLength())
	case protocol.GetSignalRequest:
		return one(d.dev.Signal())
	case protocol.GetMaxSampleValueRequest:
		return one(d.dev.MaxSampleValue())
	case protocol.GetMinSampleValueRequest:
		return one(d.dev.MinSampleValue())
	case protocol.GetSamplingFrequencyRequest:
		return one(d.dev.SamplingFrequency())

	case protocol.SetAcquisitionTimeRequest:
		return nil, d.dev.SetAcquisitionTime(args.Float32(0))
	case protocol.SetActiveReceiveElementsRequest:
		return nil, d.dev.SetActiveReceiveElements(args.Text(0))
	case protocol.SetActiveTransmitElementsRequest:
		return nil, d.dev.SetActiveTransmitElements(args.Text(0))
	case protocol.SetBaseElementRequest:
		return nil, d.dev.SetBaseElement(args.Uint32(0))
	case protocol.SetCenterFrequencyRequest:
		return nil, d.dev.SetCenterFrequency(args.Float32(0), int(args.Uint32(1)))
	case protocol.SetGainRequest:
		return nil, d.dev.SetGain(args.Float32(0))
	case protocol.SetReceiveDelaysRequest:
		return nil, d.dev.SetReceiveDelays(args.Float32Array(0))
	case protocol.SetSamplingFrequencyRequest:
		return nil, d.dev.SetSamplingFrequency(args.Float32(0))
	case protocol.SetTransmitDelaysRequest:
		return nil, d.dev.SetTransmitDelays(args.Float32Array(0))

	case protocol.ExecPreConfigurationRequest:
		return nil, d.dev.ExecPreConfiguration()
	case protocol.ExecPostConfigurationRequest:
		return nil, d.dev.ExecPostConfiguration()
	case protocol.ExecPreLoopConfigurationRequest:
		return nil, d.dev.ExecPreLoopConfiguration()
	case protocol.ExecPostLoopConfigurationRequest:
		return nil, d.dev.ExecPostLoopConfiguration()
	}
	// Lookup succeeded, so only a Schemas entry without a case lands here.
	return nil, fmt.Errorf("session: no handler for %s", typ)
}

func one[T any](v T, err error) ([]any, error) {
	if err != nil {
		return nil, err
	}
	return []any{v}, nil
}

func remoteAddr(conn io.ReadWriter) string {
	if c, ok := conn.(interface{ RemoteAddr() net.Addr }); ok && c.RemoteAddr() != nil {
		return c.RemoteAddr().String()
	}
	return "unknown"
}
