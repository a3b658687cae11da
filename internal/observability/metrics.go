package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RowsLoaded        prometheus.Counter
	RowsRejected      *prometheus.CounterVec // labels: reason={parse,validation}
	EventsNormalized  prometheus.Counter
	DuplicatesDropped prometheus.Counter
	EventsExcluded    *prometheus.CounterVec // labels: reason (relevance rule that fired)
	SmugglingFlagged  prometheus.Counter

	// Cache and refresh metrics.
	CacheLookups    *prometheus.CounterVec // labels: result={hit,miss}
	RefreshDuration prometheus.Histogram
	RefreshFailures prometheus.Counter
	LastRefresh     prometheus.Gauge

	// Sink metrics.
	EventsPublished prometheus.Counter

	PipelineReady prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maritime_etl",
			Name:      "rows_loaded_total",
			Help:      "Total CSV rows read from the source.",
		}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maritime_etl",
			Name:      "rows_rejected_total",
			Help:      "Rows rejected during cleaning, by error kind.",
		}, []string{"reason"}),
		EventsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maritime_etl",
			Name:      "events_normalized_total",
			Help:      "Rows successfully normalized into events.",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maritime_etl",
			Name:      "duplicates_dropped_total",
			Help:      "Duplicate rows dropped by the first-wins rule.",
		}),
		EventsExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maritime_etl",
			Name:      "events_excluded_total",
			Help:      "Events excluded by the maritime relevance filter, by rule.",
		}, []string{"reason"}),
		SmugglingFlagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maritime_etl",
			Name:      "smuggling_flagged_total",
			Help:      "Events flagged by the smuggling detector.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maritime_etl",
			Name:      "cache_lookups_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "maritime_etl",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete load-clean-filter-store refresh.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RefreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maritime_etl",
			Name:      "refresh_failures_total",
			Help:      "Refreshes that failed with a file-level error.",
		}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "maritime_etl",
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "maritime_etl",
			Name:      "events_published_total",
			Help:      "Events published to the Kafka sink.",
		}),
		PipelineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "maritime_etl",
			Name:      "pipeline_ready",
			Help:      "1 after the first successful refresh, 0 before.",
		}),
	}

	prometheus.MustRegister(
		m.RowsLoaded,
		m.RowsRejected,
		m.EventsNormalized,
		m.DuplicatesDropped,
		m.EventsExcluded,
		m.SmugglingFlagged,
		m.CacheLookups,
		m.RefreshDuration,
		m.RefreshFailures,
		m.LastRefresh,
		m.EventsPublished,
		m.PipelineReady,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RowsLoaded:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: "maritime_etl", Name: "rows_loaded_total"}),
		RowsRejected:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "maritime_etl", Name: "rows_rejected_total"}, []string{"reason"}),
		EventsNormalized:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "maritime_etl", Name: "events_normalized_total"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "maritime_etl", Name: "duplicates_dropped_total"}),
		EventsExcluded:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "maritime_etl", Name: "events_excluded_total"}, []string{"reason"}),
		SmugglingFlagged:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "maritime_etl", Name: "smuggling_flagged_total"}),
		CacheLookups:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "maritime_etl", Name: "cache_lookups_total"}, []string{"result"}),
		RefreshDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "maritime_etl", Name: "refresh_duration_seconds"}),
		RefreshFailures:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "maritime_etl", Name: "refresh_failures_total"}),
		LastRefresh:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "maritime_etl", Name: "last_refresh_timestamp_seconds"}),
		EventsPublished:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "maritime_etl", Name: "events_published_total"}),
		PipelineReady:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "maritime_etl", Name: "pipeline_ready"}),
	}
}
