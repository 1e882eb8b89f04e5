package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "location_reporter"

// Metrics holds the Prometheus collectors of the reporting pipeline.
type Metrics struct {
	FixesReceived      prometheus.Counter
	UpdatesActive      prometheus.Gauge
	ReportsStarted     prometheus.Counter
	ReportsSkipped     prometheus.Counter
	ResolutionFailures *prometheus.CounterVec   // labels: reason={error,empty}
	ReportOutcomes     *prometheus.CounterVec   // labels: outcome={success,failure}
	SubmitDuration     prometheus.Histogram
	GeocodeCache       *prometheus.CounterVec   // labels: result={hit,miss}
	GeocodeDuration    *prometheus.HistogramVec // labels: outcome={success,error,empty}
}

func newMetrics() *Metrics {
	return &Metrics{
		FixesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_received_total",
			Help:      "Location fixes applied to the coordinator.",
		}),
		UpdatesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "location_updates_active",
			Help:      "1 while location updates are running.",
		}),
		ReportsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_started_total",
			Help:      "Report actions that entered address resolution.",
		}),
		ReportsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_skipped_total",
			Help:      "Report actions ignored because no fix was known.",
		}),
		ResolutionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolution_failures_total",
			Help:      "Address resolutions that aborted a report.",
		}, []string{"reason"}),
		ReportOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_outcomes_total",
			Help:      "Report submissions by outcome.",
		}, []string{"outcome"}),
		SubmitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submit_duration_seconds",
			Help:      "Duration of report uploads.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_duration_seconds",
			Help:      "Reverse geocoding duration by outcome.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FixesReceived,
		m.UpdatesActive,
		m.ReportsStarted,
		m.ReportsSkipped,
		m.ResolutionFailures,
		m.ReportOutcomes,
		m.SubmitDuration,
		m.GeocodeCache,
		m.GeocodeDuration,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveGeocodeCache implements geocode.CacheRecorder.
func (m *Metrics) ObserveGeocodeCache(hit bool) {
	if hit {
		m.GeocodeCache.WithLabelValues("hit").Inc()
		return
	}
	m.GeocodeCache.WithLabelValues("miss").Inc()
}
