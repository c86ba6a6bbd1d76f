package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop-reason label values for RowsDropped. ReasonOther catches normalization
// errors outside the named classes so new failure modes surface as their own
// series instead of inflating an existing one.
const (
	ReasonBadDate       = "bad_date"
	ReasonMissingCoords = "missing_coords"
	ReasonOutsideWindow = "outside_window"
	ReasonOther         = "other"
)

// Metrics holds the Prometheus counters, gauges, and histograms for the
// forecast pipeline. The row and location counts exist so data-quality
// exclusions are always auditable downstream.
type Metrics struct {
	RowsRead    prometheus.Counter
	RowsDropped *prometheus.CounterVec // labels: reason={bad_date,missing_coords,outside_window,other}

	LocationsConsidered prometheus.Gauge
	LocationsRetained   prometheus.Gauge
	LocationsForecast   prometheus.Gauge

	ForecastRuns     prometheus.Counter
	ForecastDuration prometheus.Histogram

	// Geocoding enrichment metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsDropped,
		m.LocationsConsidered,
		m.LocationsRetained,
		m.LocationsForecast,
		m.ForecastRuns,
		m.ForecastDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spawn_forecast",
			Name:      "rows_read_total",
			Help:      "Total survey rows read from the source.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spawn_forecast",
			Name:      "rows_dropped_total",
			Help:      "Survey rows excluded during normalization, by reason.",
		}, []string{"reason"}),
		LocationsConsidered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spawn_forecast",
			Name:      "locations_considered",
			Help:      "Distinct locations present in the normalized working set.",
		}),
		LocationsRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spawn_forecast",
			Name:      "locations_retained",
			Help:      "Locations with at least one measured event.",
		}),
		LocationsForecast: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spawn_forecast",
			Name:      "locations_forecast",
			Help:      "Locations surviving the sufficiency filter and forecast.",
		}),
		ForecastRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spawn_forecast",
			Name:      "runs_total",
			Help:      "Completed forecast runs.",
		}),
		ForecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spawn_forecast",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete read-aggregate-forecast-write run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spawn_forecast",
			Name:      "geocode_requests_total",
			Help:      "Reverse-geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spawn_forecast",
			Name:      "geocode_cache_total",
			Help:      "Reverse-geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spawn_forecast",
			Name:      "geocode_enabled",
			Help:      "1 when display-name enrichment is enabled, 0 otherwise.",
		}),
	}
}
