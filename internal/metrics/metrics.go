// Package metrics holds the Prometheus collectors for the acquisition server.
//
// All methods accept a nil *Metrics and do nothing, so components can be
// built without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "arrayacq"

// Request results used as label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics is the set of server collectors.
type Metrics struct {
	sessionsTotal   prometheus.Counter
	activeSessions  prometheus.Gauge
	sessionErrors   *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesReceived   prometheus.Counter
	bytesSent       prometheus.Counter
	controllerState *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_total",
			Help:      "Total number of client sessions accepted",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_sessions",
			Help:      "Number of client sessions in progress",
		}),
		sessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "session_errors_total",
			Help:      "Sessions ended by a fatal error, by kind",
		}, []string{"kind"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Protocol requests handled, by message type and result",
		}, []string{"type", "result"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent in the device call for each request",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"type"}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "received_bytes_total",
			Help:      "Frame bytes received from clients",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sent_bytes_total",
			Help:      "Frame bytes sent to clients",
		}),
		controllerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "controller_state",
			Help:      "1 for the current lifecycle state of the server controller",
		}, []string{"state"}),
	}
}

// NewRegistry returns a registry with the Go and process collectors and the
// server metrics registered on it.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) SessionEnded(kind string) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	if kind != "" {
		m.sessionErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveRequest(msgType, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(msgType, result).Inc()
	m.requestDuration.WithLabelValues(msgType).Observe(d.Seconds())
}

func (m *Metrics) AddReceived(n int) {
	if m == nil {
		return
	}
	m.bytesReceived.Add(float64(n))
}

func (m *Metrics) AddSent(n int) {
	if m == nil {
		return
	}
	m.bytesSent.Add(float64(n))
}

// SetState marks state as current among all.
func (m *Metrics) SetState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.controllerState.WithLabelValues(s).Set(v)
	}
}
