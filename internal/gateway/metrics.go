package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes used as metric labels.
const (
	OutcomeSuccess            = "success"
	OutcomeApplicationFailure = "application_failure"
	OutcomeTransportFailure   = "transport_failure"
)

// Metric names.
const (
	CallsMetricName    = "secpi_console_calls_total"
	DurationMetricName = "secpi_console_call_duration_seconds"
)

// Metrics counts and times remote calls per endpoint path.
type Metrics struct {
	// Calls counts calls by path and outcome.
	Calls *prometheus.CounterVec
	// Duration observes call latency by path.
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the call metrics and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: CallsMetricName,
				Help: "Total remote API calls by endpoint path and outcome.",
			},
			[]string{"path", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    DurationMetricName,
				Help:    "Duration of remote API calls in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"path"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Calls, m.Duration)
	}

	return m
}
