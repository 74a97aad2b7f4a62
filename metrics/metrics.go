// Package metrics provides Prometheus metrics for the attrition risk engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	dfltNamespace = "attrisim"
	dfltSubsystem = "engine"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithPrometheusRegistry sets a custom Prometheus registry.
func WithPrometheusRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Manager holds all the engine metrics. All the recording methods
// can be called on a nil Manager in which case they do nothing.
type Manager struct {
	namespace string
	subsystem string
	registry  *prometheus.Registry

	modelInstalls    *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	artifactFailures *prometheus.CounterVec
	liveModelTrained prometheus.Gauge

	recordsScored     prometheus.Counter
	inferenceBatch    prometheus.Histogram
	untrainedFallback prometheus.Counter
	verdicts          *prometheus.CounterVec
}

// NewManager creates a new metrics manager. Without WithPrometheusRegistry,
// a private registry is used (i.e. no default Go runtime metrics).
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: dfltNamespace,
		subsystem: dfltSubsystem,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.modelInstalls = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "model_installs_total",
			Help:      "Number of models made live, by their origin (trained, loaded, none)",
		},
		[]string{"source"},
	)

	m.trainingDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "training_duration_seconds",
		Help:      "Duration of classifier training",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	m.artifactFailures = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "artifact_failures_total",
			Help:      "Failed model artifact operations (load, decode, save)",
		},
		[]string{"operation"},
	)

	m.liveModelTrained = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "live_model_trained",
		Help:      "1 if the live model is a fitted classifier, 0 for the zero fallback",
	})

	m.recordsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_scored_total",
		Help:      "Number of employee records passed through the classifier",
	})

	m.inferenceBatch = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inference_batch_size",
		Help:      "Number of records in a single inference call",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	m.untrainedFallback = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "untrained_fallbacks_total",
		Help:      "Inference calls answered with zero probabilities because no model is trained",
	})

	m.verdicts = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "verdicts_total",
			Help:      "Hybrid verdicts produced",
		},
		[]string{"verdict"},
	)
}

func (m *Manager) RecordModelInstall(source string, trained bool) {
	if m == nil {
		return
	}
	m.modelInstalls.WithLabelValues(source).Inc()
	if trained {
		m.liveModelTrained.Set(1)

	} else {
		m.liveModelTrained.Set(0)
	}
}

func (m *Manager) RecordTraining(dur time.Duration) {
	if m == nil {
		return
	}
	m.trainingDuration.Observe(dur.Seconds())
}

func (m *Manager) RecordArtifactFailure(operation string) {
	if m == nil {
		return
	}
	m.artifactFailures.WithLabelValues(operation).Inc()
}

func (m *Manager) RecordInference(batchSize int, untrained bool) {
	if m == nil {
		return
	}
	m.inferenceBatch.Observe(float64(batchSize))
	m.recordsScored.Add(float64(batchSize))
	if untrained {
		m.untrainedFallback.Inc()
	}
}

func (m *Manager) RecordVerdict(verdict string) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(verdict).Inc()
}

// Handler exposes the metrics in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
