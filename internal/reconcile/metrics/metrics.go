package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects batch-level counters. A nil *Metrics is a no-op so unit
// tests can skip the global prometheus registry.
type Metrics struct {
	RowsProcessed   *prometheus.CounterVec
	BatchesTotal    *prometheus.CounterVec
	DuplicatesTotal prometheus.Counter
	BatchDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	return &Metrics{
		RowsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trs_batch_rows_processed_total",
			Help: "Total rows processed by batch jobs, by job and terminal status",
		}, []string{"job", "status"}),
		BatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trs_batch_runs_total",
			Help: "Total batch runs, by job and outcome",
		}, []string{"job", "status"}),
		DuplicatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trs_batch_duplicate_rows_total",
			Help: "Total rows flagged for duplicate review",
		}),
		BatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trs_batch_duration_seconds",
			Help:    "Wall-clock duration of batch runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"job"}),
	}
}

func (m *Metrics) ObserveRow(job, status string, duplicate bool) {
	if m == nil {
		return
	}
	m.RowsProcessed.WithLabelValues(job, status).Inc()
	if duplicate {
		m.DuplicatesTotal.Inc()
	}
}

func (m *Metrics) ObserveBatch(job, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(job, status).Inc()
	m.BatchDuration.WithLabelValues(job).Observe(d.Seconds())
}
