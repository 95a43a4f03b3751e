package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "broadband_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL job.
type Metrics struct {
	RunsTotal         prometheus.Counter
	RunFailures       prometheus.Counter
	RunDuration       prometheus.Histogram
	PipelineRunning   prometheus.Gauge
	RecordsExtracted  prometheus.Counter
	FilesDownloaded   prometheus.Counter
	FeaturesPublished *prometheus.GaugeVec // labels: layer
	UnmatchedCells    *prometheus.GaugeVec // labels: resolution

	// Hex geometry cache.
	HexCache *prometheus.CounterVec // labels: resolution, result={hit,miss,error}
}

// NewMetrics creates and registers all job metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsTotal,
		m.RunFailures,
		m.RunDuration,
		m.PipelineRunning,
		m.RecordsExtracted,
		m.FilesDownloaded,
		m.FeaturesPublished,
		m.UnmatchedCells,
		m.HexCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total pipeline runs started.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Total pipeline runs that ended in an error.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete extract-transform-publish run.",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600, 7200},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Availability records read from BDC files.",
		}),
		FilesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_downloaded_total",
			Help:      "BDC availability files downloaded.",
		}),
		FeaturesPublished: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "features_published",
			Help:      "Features or rows written to each destination by the last successful run.",
		}, []string{"layer"}),
		UnmatchedCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unmatched_cells",
			Help:      "Cells with service but no polygon in the hex layer, by resolution.",
		}, []string{"resolution"}),
		HexCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hex_cache_total",
			Help:      "Hex geometry cache lookups by resolution and result.",
		}, []string{"resolution", "result"}),
	}
}
