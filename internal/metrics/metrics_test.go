package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.IncrementOutcome("valid", "AADHAAR", "tenant")
	m.IncrementOutcome("valid", "AADHAAR", "tenant")
	m.IncrementOutcome("role_rejected", "DRIVING_LICENSE", "owner")
	m.IncrementParameter("Format Validity", false)
	m.OCRFallback("low_confidence", true)
	m.IncrementNameMatch("ocr_correction", true)
	m.ObserveOCRLatency("google-vision", 800*time.Millisecond)
	m.ObserveVerifyLatency(time.Second)

	assert.Equal(t, 2.0, counterValue(t, m, "idverify_verification_outcomes_total",
		map[string]string{"status": "valid", "document_type": "AADHAAR", "role": "tenant"}))
	assert.Equal(t, 1.0, counterValue(t, m, "idverify_verification_outcomes_total",
		map[string]string{"status": "role_rejected", "document_type": "DRIVING_LICENSE", "role": "owner"}))
	assert.Equal(t, 1.0, counterValue(t, m, "idverify_parameter_results_total",
		map[string]string{"parameter": "Format Validity", "passed": "false"}))
	assert.Equal(t, 1.0, counterValue(t, m, "idverify_ocr_fallbacks_total",
		map[string]string{"reason": "low_confidence", "secondary_won": "true"}))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementOutcome("valid", "PAN", "tenant")
		m.IncrementParameter("Keyword Presence", true)
		m.OCRFallback("primary_error", false)
		m.IncrementNameMatch("exact", true)
		m.ObserveOCRLatency("google-vision", time.Second)
		m.ObserveVerifyLatency(time.Second)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IncrementOutcome("invalid", "PAN", "owner")

	path := filepath.Join(t.TempDir(), "idverify.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `idverify_verification_outcomes_total{document_type="PAN",role="owner",status="invalid"} 1`))
}
