package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// ProviderCallsTotal counts provider calls by outcome, after retries.
	ProviderCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantcare",
		Subsystem: "diagnosis",
		Name:      "provider_calls_total",
		Help:      "Total provider classification calls, labeled by provider and result.",
	}, []string{"provider", "result"})

	// ProviderCallDuration is wall-clock time per provider call including retries.
	ProviderCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plantcare",
		Subsystem: "diagnosis",
		Name:      "provider_call_duration_seconds",
		Help:      "Wall-clock duration of one provider call including retries.",
		// Keep buckets fairly coarse to avoid high-cardinality time series.
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
	}, []string{"provider"})

	// ProviderRetriesTotal counts failed attempts that entered backoff.
	ProviderRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantcare",
		Subsystem: "diagnosis",
		Name:      "provider_retries_total",
		Help:      "Failed provider call attempts that were eligible for retry.",
	}, []string{"provider"})

	// DiagnosesTotal counts end-to-end diagnosis requests by mode and outcome.
	DiagnosesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plantcare",
		Subsystem: "diagnosis",
		Name:      "diagnoses_total",
		Help:      "Total diagnosis requests, labeled by mode and result.",
	}, []string{"mode", "result"})

	// DiagnosisDuration is end-to-end time per diagnosis request.
	DiagnosisDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plantcare",
		Subsystem: "diagnosis",
		Name:      "diagnosis_duration_seconds",
		Help:      "End-to-end time to serve one diagnosis request.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"mode"})

	// EnsembleAgreement observes the agreement level of ensemble runs.
	EnsembleAgreement = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "plantcare",
		Subsystem: "diagnosis",
		Name:      "ensemble_agreement_level",
		Help:      "Agreement level of completed ensemble diagnoses.",
		Buckets:   []float64{0.2, 0.4, 0.5, 0.6, 0.8, 0.9, 1},
	})
)

// Register registers diagnosis metrics with the default Prometheus
// registry. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			ProviderCallsTotal,
			ProviderCallDuration,
			ProviderRetriesTotal,
			DiagnosesTotal,
			DiagnosisDuration,
			EnsembleAgreement,
		)
	})
}
