package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilManagerIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.RecordModelInstall("trained", true)
		m.RecordTraining(time.Second)
		m.RecordArtifactFailure("load")
		m.RecordInference(10, false)
		m.RecordVerdict("Critical")
	})
}

func TestRecording(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewManager(WithPrometheusRegistry(registry), WithNamespace("test"))

	m.RecordModelInstall("loaded", true)
	m.RecordModelInstall("none", false)
	m.RecordInference(5, false)
	m.RecordInference(2, true)
	m.RecordVerdict("Critical")
	m.RecordVerdict("Critical")
	m.RecordVerdict("Monitoring")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelInstalls.WithLabelValues("loaded")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.liveModelTrained))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.recordsScored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.untrainedFallback))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.verdicts.WithLabelValues("Critical")))
}

func TestHandler(t *testing.T) {
	m := NewManager()
	m.RecordVerdict("Monitoring")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "attrisim_engine_verdicts_total"))
}
