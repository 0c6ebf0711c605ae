// Package metrics exposes Prometheus collectors for secure buffers and
// chat completion calls. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for chat requests.
const (
	OutcomeOK              = "ok"
	OutcomeConnectionError = "connection_error"
	OutcomeAPIError        = "api_error"
	OutcomeDecodeError     = "decode_error"
	OutcomeNoChoices       = "no_choices"
	OutcomeRequestError    = "request_error"
)

// Metrics holds the securechat collectors.
type Metrics struct {
	buffersLive  prometheus.Gauge
	lockFailures prometheus.Counter
	chatRequests *prometheus.CounterVec
	chatDuration prometheus.Histogram
}

// New creates the collectors and registers them on registerer. A nil
// registerer leaves them unregistered, which is useful in tests.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		buffersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "securechat_buffers_live",
			Help: "Number of secure buffers currently holding memory",
		}),
		lockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securechat_lock_failures_total",
			Help: "Total number of memory lock calls that failed",
		}),
		chatRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "securechat_chat_requests_total",
				Help: "Total number of chat completion requests by outcome",
			},
			[]string{"outcome"},
		),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "securechat_chat_request_duration_seconds",
			Help:    "Duration of chat completion requests in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}

	if registerer != nil {
		for _, collector := range []prometheus.Collector{m.buffersLive, m.lockFailures, m.chatRequests, m.chatDuration} {
			if err := registerer.Register(collector); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

// BufferCreated records a new live buffer.
func (m *Metrics) BufferCreated() {
	if m == nil {
		return
	}
	m.buffersLive.Inc()
}

// BufferReleased records a buffer whose memory was released.
func (m *Metrics) BufferReleased() {
	if m == nil {
		return
	}
	m.buffersLive.Dec()
}

// LockFailed records a failed memory lock.
func (m *Metrics) LockFailed() {
	if m == nil {
		return
	}
	m.lockFailures.Inc()
}

// ChatRequest records one chat completion call.
func (m *Metrics) ChatRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(outcome).Inc()
	m.chatDuration.Observe(elapsed.Seconds())
}

// BuffersLive returns the live buffer gauge for testing.
func (m *Metrics) BuffersLive() prometheus.Gauge {
	return m.buffersLive
}

// LockFailures returns the lock failure counter for testing.
func (m *Metrics) LockFailures() prometheus.Counter {
	return m.lockFailures
}

// ChatRequests returns the request counter for testing.
func (m *Metrics) ChatRequests() *prometheus.CounterVec {
	return m.chatRequests
}
