// Package metrics holds the Prometheus instruments of the payment workflow.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the workflow's instruments. A nil *Metrics is valid and
// records nothing, so callers that do not scrape can skip registration.
type Metrics struct {
	runs          *prometheus.CounterVec
	stepFailures  *prometheus.CounterVec
	chargeSeconds prometheus.Histogram
}

// New registers the workflow instruments against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderpay_runs_total",
				Help: "Order-processing runs by terminal outcome.",
			},
			[]string{"outcome"},
		),
		stepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orderpay_step_failures_total",
				Help: "Step failures by step name and error kind.",
			},
			[]string{"step", "kind"},
		),
		chargeSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "orderpay_charge_duration_seconds",
				Help:    "Duration of payment-gateway charge calls in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	reg.MustRegister(m.runs, m.stepFailures, m.chargeSeconds)
	return m
}

func (m *Metrics) RecordRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordStepFailure(step, kind string) {
	if m == nil {
		return
	}
	m.stepFailures.WithLabelValues(step, kind).Inc()
}

func (m *Metrics) ObserveChargeSeconds(seconds float64) {
	if m == nil {
		return
	}
	m.chargeSeconds.Observe(seconds)
}
