package moderation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the request counter.
const (
	outcomeSuccess   = "success"
	outcomeClient    = "client_error"
	outcomeServer    = "server_error"
	outcomeTransport = "transport_error"
	outcomeSchema    = "schema_error"
)

// Metrics records provider calls. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	attempts prometheus.Counter
	latency  prometheus.Histogram
}

// NewMetrics registers the moderation collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qna",
			Subsystem: "moderation",
			Name:      "requests_total",
			Help:      "Censor calls by final outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "qna",
			Subsystem: "moderation",
			Name:      "attempts_total",
			Help:      "HTTP attempts made against the moderation provider, retries included.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "qna",
			Subsystem: "moderation",
			Name:      "request_duration_seconds",
			Help:      "Duration of censor calls, retries and backoff included.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requests, m.attempts, m.latency)
	return m
}

func (m *Metrics) observeAttempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}

func (m *Metrics) observeRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.latency.Observe(elapsed.Seconds())
}
