// Package observability publishes rollup run statistics as Prometheus
// metrics. A batch run has no scrape endpoint, so metrics are gathered from a
// private registry and written to a node-exporter textfile when the run ends.
package observability

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
)

const namespace = "rollup"

// Metrics implements rollup.Observer on a dedicated Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	keepers    *prometheus.CounterVec
	unresolved prometheus.Gauge
	batches    prometheus.Counter
	batchSize  prometheus.Histogram
	derived    prometheus.Counter
	skipped    prometheus.Counter
}

var _ rollup.Observer = (*Metrics)(nil)

// NewMetrics registers the rollup collectors. Every series carries the
// annotation type and run ID as constant labels.
func NewMetrics(annotationType, runID string) *Metrics {
	labels := prometheus.Labels{"annotation_type": annotationType, "run_id": runID}
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "source_operations_total",
			Help:        "Source reads by operation and outcome.",
			ConstLabels: labels,
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "source_operation_duration_seconds",
			Help:        "Duration of source reads.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"operation"}),
		keepers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "keepers_total",
			Help:        "Genotype to target keepers claimed, by rule.",
			ConstLabels: labels,
		}, []string{"rule"}),
		unresolved: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "genotypes_unresolved",
			Help:        "Genotypes no rule could attribute to a target.",
			ConstLabels: labels,
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "batches_total",
			Help:        "Annotation batches loaded.",
			ConstLabels: labels,
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "batch_annotations",
			Help:        "Qualifying annotations per loaded batch.",
			ConstLabels: labels,
			Buckets:     []float64{10, 100, 500, 1000, 2500, 5000, 10000},
		}),
		derived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "derived_annotations_total",
			Help:        "Derived annotation rows materialized.",
			ConstLabels: labels,
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "rows_skipped_total",
			Help:        "Derived rows not written because the target has no ID.",
			ConstLabels: labels,
		}),
	}
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.operations, m.durations, m.keepers, m.unresolved,
		m.batches, m.batchSize, m.derived, m.skipped,
	)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe records a source operation outcome.
func (m *Metrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) KeepersClaimed(rule domain.RuleID, n int) {
	m.keepers.WithLabelValues(rule.String()).Add(float64(n))
}

func (m *Metrics) GenotypesUnresolved(n int) { m.unresolved.Set(float64(n)) }

func (m *Metrics) BatchLoaded(_ int, annotations int) {
	m.batches.Inc()
	m.batchSize.Observe(float64(annotations))
}

func (m *Metrics) RowsDerived(n int) { m.derived.Add(float64(n)) }

// RowsSkipped counts rows a writer dropped.
func (m *Metrics) RowsSkipped(n int) { m.skipped.Add(float64(n)) }

// WriteTextfile writes every gathered series to path in the text exposition
// format, replacing the file atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
