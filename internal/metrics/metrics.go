package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	modelFitsTotal      *prometheus.CounterVec
	modelFitDuration    prometheus.Histogram
	forecastsTotal      *prometheus.CounterVec
	simulationPaths     prometheus.Counter
	backtestsTotal      *prometheus.CounterVec
	backtestDuration    prometheus.Histogram
	signalsGenerated    *prometheus.CounterVec
	observationsStored  prometheus.Counter
	observationsTracked prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.modelFitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memcycle_model_fits_total",
			Help: "Total number of regime model fits",
		},
		[]string{"status"},
	)
	r.modelFitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memcycle_model_fit_duration_seconds",
			Help:    "Regime model fit duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	r.forecastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memcycle_forecasts_total",
			Help: "Total number of price forecasts run",
		},
		[]string{"status"},
	)
	r.simulationPaths = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memcycle_simulation_paths_total",
			Help: "Total number of Monte Carlo paths simulated",
		},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memcycle_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memcycle_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.signalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memcycle_signals_generated_total",
			Help: "Total number of trading signals generated",
		},
		[]string{"action"},
	)
	r.observationsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memcycle_observations_stored_total",
			Help: "Total number of observations written to the table",
		},
	)
	r.observationsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memcycle_observations_tracked",
			Help: "Number of quarterly observations in the table",
		},
	)

	reg.MustRegister(r.modelFitsTotal)
	reg.MustRegister(r.modelFitDuration)
	reg.MustRegister(r.forecastsTotal)
	reg.MustRegister(r.simulationPaths)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.signalsGenerated)
	reg.MustRegister(r.observationsStored)
	reg.MustRegister(r.observationsTracked)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordModelFit records a regime model fit.
func (r *Registry) RecordModelFit(status string, duration float64) {
	r.modelFitsTotal.WithLabelValues(status).Inc()
	r.modelFitDuration.Observe(duration)
}

// RecordForecast records a forecast run and its simulated path count.
func (r *Registry) RecordForecast(status string, paths int) {
	r.forecastsTotal.WithLabelValues(status).Inc()
	if paths > 0 {
		r.simulationPaths.Add(float64(paths))
	}
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordSignal records a generated trading signal.
func (r *Registry) RecordSignal(action string) {
	r.signalsGenerated.WithLabelValues(action).Inc()
}

// RecordObservationStored records an observation write and the new table size.
func (r *Registry) RecordObservationStored(tableSize int) {
	r.observationsStored.Inc()
	r.observationsTracked.Set(float64(tableSize))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
