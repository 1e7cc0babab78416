// Package metrics holds the prometheus collectors shared by the gateway
// and the list controllers.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Fetch outcomes recorded by controllers.
const (
	FetchCommitted = "committed"
	FetchDiscarded = "discarded"
	FetchFailed    = "failed"
)

type Metrics struct {
	GatewayDuration *prometheus.HistogramVec
	GatewayErrors   *prometheus.CounterVec
	Fetches         *prometheus.CounterVec
	Sessions        prometheus.Gauge
}

// New creates the collectors and registers them on reg.
// A nil reg leaves them unregistered, which is handy in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "postadmin",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Duration of gateway operations.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 1.5, 2.5, 5},
		}, []string{"op"}),
		GatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postadmin",
			Subsystem: "gateway",
			Name:      "errors_total",
			Help:      "Failed gateway operations.",
		}, []string{"op"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "postadmin",
			Subsystem: "controller",
			Name:      "fetches_total",
			Help:      "List fetches by outcome.",
		}, []string{"outcome"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "postadmin",
			Subsystem: "session",
			Name:      "active",
			Help:      "Open admin sessions.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.GatewayDuration, m.GatewayErrors, m.Fetches, m.Sessions)
	}
	return m
}

// ObserveFetch counts one controller fetch outcome. It is safe on a nil receiver.
func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(outcome).Inc()
}
