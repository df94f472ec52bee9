// Package metrics exposes Prometheus instrumentation for document verification.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification pipeline.
type Metrics struct {
	// Verification outcomes by status, document type and role
	VerificationOutcome *prometheus.CounterVec

	// Parameter results by parameter name and result
	ParameterResult *prometheus.CounterVec

	// OCR latency by provider
	OCRLatency *prometheus.HistogramVec

	// Secondary OCR provider usage by reason and winner
	OCRFallbacks *prometheus.CounterVec

	// Name match results by method
	NameMatch *prometheus.CounterVec

	// Overall verification latency including OCR
	VerifyLatency prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance registered on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all verification metrics on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerificationOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_verification_outcomes_total",
			Help: "Total verification outcomes by status, document type and role",
		}, []string{"status", "document_type", "role"}), // status: "valid", "invalid", "ocr_failed", "unknown_type", "role_rejected"

		ParameterResult: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_parameter_results_total",
			Help: "Total parameter evaluations by parameter and result",
		}, []string{"parameter", "passed"}),

		OCRLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idverify_ocr_duration_seconds",
			Help:    "Duration of OCR extraction by provider",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"provider"}),

		OCRFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_ocr_fallbacks_total",
			Help: "Total secondary OCR provider consultations by reason and whether the secondary result was used",
		}, []string{"reason", "secondary_won"}),

		NameMatch: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idverify_name_matches_total",
			Help: "Total declared-name comparisons by method and result",
		}, []string{"method", "matched"}),

		VerifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "idverify_verify_duration_seconds",
			Help:    "Duration of full document verification including OCR",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),

		registry: reg,
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the current metrics in the node-exporter textfile
// format, for batch runs that exit before they could be scraped.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// IncrementOutcome records a verification outcome.
func (m *Metrics) IncrementOutcome(status, documentType, role string) {
	if m != nil {
		m.VerificationOutcome.WithLabelValues(status, documentType, role).Inc()
	}
}

// IncrementParameter records one parameter evaluation.
func (m *Metrics) IncrementParameter(name string, passed bool) {
	if m != nil {
		m.ParameterResult.WithLabelValues(name, boolLabel(passed)).Inc()
	}
}

// ObserveOCRLatency records the duration of an OCR call.
func (m *Metrics) ObserveOCRLatency(provider string, d time.Duration) {
	if m != nil {
		m.OCRLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// OCRFallback implements ocr.FallbackObserver.
func (m *Metrics) OCRFallback(reason string, secondaryWon bool) {
	if m != nil {
		m.OCRFallbacks.WithLabelValues(reason, boolLabel(secondaryWon)).Inc()
	}
}

// IncrementNameMatch records a name comparison.
func (m *Metrics) IncrementNameMatch(method string, matched bool) {
	if m != nil {
		m.NameMatch.WithLabelValues(method, boolLabel(matched)).Inc()
	}
}

// ObserveVerifyLatency records the total verification duration.
func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
