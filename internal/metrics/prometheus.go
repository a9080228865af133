// Package metrics exposes reconciliation outcomes as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/city-forecast-cache/internal/weather"
)

// PrometheusRecorder implements weather.Recorder on a private registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	cycleDuration  prometheus.Histogram
	cycles         prometheus.Counter
	rowsSeen       prometheus.Gauge
	citiesSkipped  prometheus.Counter
	fetchFailures  *prometheus.CounterVec
	fieldUpdates   *prometheus.CounterVec
	writeFailures  prometheus.Counter
	lastCycleUnixS prometheus.Gauge
}

var _ weather.Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder creates a recorder with Go and process collectors registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecast_reconcile_duration_seconds",
			Help:    "Duration of reconciliation cycles.",
			Buckets: prometheus.DefBuckets,
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_reconcile_cycles_total",
			Help: "Total number of reconciliation cycles run.",
		}),
		rowsSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_reconcile_rows",
			Help: "Number of stored cities seen by the last cycle.",
		}),
		citiesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_reconcile_skipped_total",
			Help: "Cities skipped because their forecast could not be fetched.",
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_fetch_failures_total",
			Help: "Provider fetch failures during reconciliation by reason.",
		}, []string{"reason"}),
		fieldUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forecast_field_updates_total",
			Help: "Stored forecast fields rewritten because their value changed.",
		}, []string{"field"}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forecast_write_failures_total",
			Help: "Field updates that failed during reconciliation.",
		}),
		lastCycleUnixS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forecast_reconcile_last_run_timestamp_seconds",
			Help: "Start time of the last reconciliation cycle.",
		}),
	}

	registry.MustRegister(
		r.cycleDuration,
		r.cycles,
		r.rowsSeen,
		r.citiesSkipped,
		r.fetchFailures,
		r.fieldUpdates,
		r.writeFailures,
		r.lastCycleUnixS,
	)
	return r
}

// ObserveCycle records a finished cycle.
func (r *PrometheusRecorder) ObserveCycle(report weather.CycleReport) {
	r.cycles.Inc()
	r.cycleDuration.Observe(report.Duration.Seconds())
	r.rowsSeen.Set(float64(report.Rows))
	r.citiesSkipped.Add(float64(report.Skipped))
	r.writeFailures.Add(float64(report.WriteFailures))
	r.lastCycleUnixS.Set(float64(report.Started.Unix()))
}

// IncFetchFailure counts a fetch failure.
func (r *PrometheusRecorder) IncFetchFailure(reason string) {
	r.fetchFailures.WithLabelValues(reason).Inc()
}

// IncFieldUpdate counts a field write.
func (r *PrometheusRecorder) IncFieldUpdate(field weather.Field) {
	r.fieldUpdates.WithLabelValues(string(field)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
