package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Pending set metrics
	pendingSize   prometheus.Gauge
	pendingSpaces prometheus.Gauge
	txsStaged     prometheus.Counter
	txsRejected   *prometheus.CounterVec

	// Commit metrics
	commits        *prometheus.CounterVec
	commitHeight   prometheus.Gauge
	commitDuration prometheus.Histogram

	// Proving metrics
	provingDuration *prometheus.HistogramVec

	// State metrics
	stateVersion *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,

		pendingSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_size",
				Help:      "Number of staged transactions awaiting commit",
			},
		),
		pendingSpaces: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_spaces",
				Help:      "Number of spaces with staged transactions",
			},
		),
		txsStaged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_staged_total",
				Help:      "Total number of transactions staged",
			},
		),
		txsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_rejected_total",
				Help:      "Total number of rejected transactions",
			},
			[]string{"reason"},
		),

		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Total number of commit attempts",
			},
			[]string{"result"},
		),
		commitHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "commit_height",
				Help:      "Latest committed sequence number",
			},
		),
		commitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "End-to-end time of commit attempts",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 600},
			},
		),

		provingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "proving_duration_seconds",
				Help:      "Time spent proving a batch set",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 600},
			},
			[]string{"backend"},
		),

		stateVersion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state_version",
				Help:      "Committed state tree version per space",
			},
			[]string{"space"},
		),
	}

	m.registerMetrics()

	return m
}

func (m *PrometheusMetrics) registerMetrics() {
	m.registry.MustRegister(
		m.pendingSize,
		m.pendingSpaces,
		m.txsStaged,
		m.txsRejected,

		m.commits,
		m.commitHeight,
		m.commitDuration,

		m.provingDuration,

		m.stateVersion,
	)
}

// Pending set metrics implementation

func (m *PrometheusMetrics) SetPendingSize(count int) {
	m.pendingSize.Set(float64(count))
}

func (m *PrometheusMetrics) SetPendingSpaces(count int) {
	m.pendingSpaces.Set(float64(count))
}

func (m *PrometheusMetrics) IncTxsStaged() {
	m.txsStaged.Inc()
}

func (m *PrometheusMetrics) IncTxsRejected(reason string) {
	m.txsRejected.WithLabelValues(reason).Inc()
}

// Commit metrics implementation

func (m *PrometheusMetrics) IncCommits(result string) {
	m.commits.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) SetCommitHeight(height int64) {
	m.commitHeight.Set(float64(height))
}

func (m *PrometheusMetrics) ObserveCommitDuration(d time.Duration) {
	m.commitDuration.Observe(d.Seconds())
}

// Proving metrics implementation

func (m *PrometheusMetrics) ObserveProvingDuration(backend string, d time.Duration) {
	m.provingDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// State metrics implementation

func (m *PrometheusMetrics) SetStateVersion(space string, version int64) {
	m.stateVersion.WithLabelValues(space).Set(float64(version))
}

// Handler returns an HTTP handler for serving metrics.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

var _ Metrics = (*PrometheusMetrics)(nil)
