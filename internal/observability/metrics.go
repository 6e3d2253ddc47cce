package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solar_outlook"

// Metrics holds the Prometheus collectors for the reconciliation engine.
type Metrics struct {
	Cycles        *prometheus.CounterVec   // labels: kind={refresh,model,ingest}, outcome={success,error,busy,skipped}
	CycleDuration *prometheus.HistogramVec // labels: kind
	CycleRunning  prometheus.Gauge

	RowsUpserted *prometheus.CounterVec // labels: source
	RowsDeleted  *prometheus.CounterVec // labels: source

	// Bulletin and model inputs.
	BulletinFetchDuration prometheus.Histogram
	BulletinRows          prometheus.Gauge
	PredictionsRejected   prometheus.Counter

	// Read side.
	WindowServed *prometheus.CounterVec // labels: tier={observed,stored,bulletin,shifted,none}
	WindowCache  *prometheus.CounterVec // labels: result={hit,miss,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Cycles,
		m.CycleDuration,
		m.CycleRunning,
		m.RowsUpserted,
		m.RowsDeleted,
		m.BulletinFetchDuration,
		m.BulletinRows,
		m.PredictionsRejected,
		m.WindowServed,
		m.WindowCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Reconciliation cycles by kind and outcome.",
		}, []string{"kind", "outcome"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a reconciliation cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		CycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_running",
			Help:      "1 while a refresh or model cycle holds the engine, 0 otherwise.",
		}),
		RowsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_upserted_total",
			Help:      "Forecast rows written by source.",
		}, []string{"source"}),
		RowsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_deleted_total",
			Help:      "Forecast rows removed by source.",
		}, []string{"source"}),
		BulletinFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulletin_fetch_duration_seconds",
			Help:      "SWPC bulletin download duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		BulletinRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bulletin_rows",
			Help:      "Rows parsed from the most recent bulletin.",
		}),
		PredictionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_rejected_total",
			Help:      "Model output rows dropped for a bad date or missing values.",
		}),
		WindowServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_served_total",
			Help:      "27-day window reads by the tier that satisfied them.",
		}, []string{"tier"}),
		WindowCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_cache_total",
			Help:      "Window cache lookups by result.",
		}, []string{"result"}),
	}
}
