package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the convergence agent.
type Metrics struct {
	config MetricsConfig

	// Pass metrics
	passesStarted   *prometheus.CounterVec
	passesCompleted *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec

	// Resource metrics
	resourcesEvaluated *prometheus.CounterVec
	resourceDuration   *prometheus.HistogramVec

	// Provider metrics
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec

	// Sync metrics
	syncActions *prometheus.CounterVec

	// Event metrics
	eventsRecorded *prometheus.CounterVec

	// System metrics
	activePasses prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Pass metrics
		passesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_started_total",
				Help:      "Total number of convergence passes started",
			},
			[]string{"mode"},
		),
		passesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_completed_total",
				Help:      "Total number of convergence passes completed",
			},
			[]string{"status"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Duration of convergence passes in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Resource metrics
		resourcesEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resources_evaluated_total",
				Help:      "Total number of resources evaluated",
			},
			[]string{"type", "result"},
		),
		resourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resource_evaluation_duration_seconds",
				Help:      "Duration of individual resource evaluations in seconds",
				Buckets:   buckets,
			},
			[]string{"type"},
		),

		// Provider metrics
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Total number of provider calls",
			},
			[]string{"provider", "operation"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of provider calls in seconds",
				Buckets:   buckets,
			},
			[]string{"provider", "operation"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of provider errors",
			},
			[]string{"provider", "operation"},
		),

		// Sync metrics
		syncActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_actions_total",
				Help:      "Total number of corrective actions applied",
			},
			[]string{"type", "action"},
		),

		// Event metrics
		eventsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_recorded_total",
				Help:      "Total number of transaction events recorded",
			},
			[]string{"status"},
		),

		// System metrics
		activePasses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_passes",
				Help:      "Current number of active convergence passes",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.passesStarted,
		m.passesCompleted,
		m.passDuration,
		m.resourcesEvaluated,
		m.resourceDuration,
		m.providerCalls,
		m.providerDuration,
		m.providerErrors,
		m.syncActions,
		m.eventsRecorded,
		m.activePasses,
	)

	return m, nil
}

// Pass Metrics

// RecordPassStarted increments the counter for started passes.
// Mode is "apply" or "noop".
func (m *Metrics) RecordPassStarted(mode string) {
	if m.passesStarted == nil {
		return
	}
	m.passesStarted.WithLabelValues(mode).Inc()
	m.activePasses.Inc()
}

// RecordPassCompleted records a completed pass with its status and duration.
func (m *Metrics) RecordPassCompleted(status string, duration time.Duration) {
	if m.passesCompleted == nil {
		return
	}
	m.passesCompleted.WithLabelValues(status).Inc()
	m.passDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activePasses.Dec()
}

// Resource Metrics

// RecordResourceEvaluation records the evaluation of a single resource.
// Result is one of insync, changed, skipped or failed.
func (m *Metrics) RecordResourceEvaluation(resourceType, result string, duration time.Duration) {
	if m.resourcesEvaluated == nil {
		return
	}
	m.resourcesEvaluated.WithLabelValues(resourceType, result).Inc()
	m.resourceDuration.WithLabelValues(resourceType).Observe(duration.Seconds())
}

// Provider Metrics

// RecordProviderCall records a provider call with its duration.
func (m *Metrics) RecordProviderCall(provider, operation string, duration time.Duration) {
	if m.providerCalls == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, operation).Inc()
	m.providerDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(provider, operation string) {
	if m.providerErrors == nil {
		return
	}
	m.providerErrors.WithLabelValues(provider, operation).Inc()
}

// Sync Metrics

// RecordSyncAction records a corrective action (installed, removed, updated).
func (m *Metrics) RecordSyncAction(resourceType, action string) {
	if m.syncActions == nil {
		return
	}
	m.syncActions.WithLabelValues(resourceType, action).Inc()
}

// Event Metrics

// RecordEvent records a transaction event by status.
func (m *Metrics) RecordEvent(status string) {
	if m.eventsRecorded == nil {
		return
	}
	m.eventsRecorded.WithLabelValues(status).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
