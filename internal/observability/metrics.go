package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "heat_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the risk service.
type Metrics struct {
	// Assessment pipeline metrics.
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	InvalidRecords   prometheus.Counter
	PipelineRunning  prometheus.Gauge

	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Scoring metrics.
	Assessments *prometheus.CounterVec // labels: risk_level={low,medium,high}

	// Weather metrics.
	WeatherRequests    *prometheus.CounterVec   // labels: tier={rich,simple,forecast,alerts}, outcome={success,transport,status,decode}
	WeatherFallbacks   *prometheus.CounterVec   // labels: to={simple,default,snapshot}
	WeatherAPIDuration *prometheus.HistogramVec // labels: tier

	// AI recommendation metrics.
	AIRequests *prometheus.CounterVec // labels: outcome={success,error,rejected}
	AICache    *prometheus.CounterVec // labels: result={hit,miss}
	AIEnabled  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total patient records read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total assessments written to the sink topic.",
		}),
		InvalidRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_records_total",
			Help:      "Total patient records rejected before scoring.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the assessment pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of patient records per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-assess-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Risk assessments computed, by resulting risk level.",
		}, []string{"risk_level"}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather API requests by tier and outcome.",
		}, []string{"tier", "outcome"}),
		WeatherFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fallbacks_total",
			Help:      "Weather lookups that fell through to a lesser source.",
		}, []string{"to"}),
		WeatherAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "OpenWeather API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"tier"}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "AI recommendation requests by outcome.",
		}, []string{"outcome"}),
		AICache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_cache_total",
			Help:      "AI recommendation cache lookups by result.",
		}, []string{"result"}),
		AIEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ai_enabled",
			Help:      "1 when AI recommendations are enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.InvalidRecords,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.Assessments,
		m.WeatherRequests,
		m.WeatherFallbacks,
		m.WeatherAPIDuration,
		m.AIRequests,
		m.AICache,
		m.AIEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MessagesConsumed:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_consumed_total"}),
		MessagesProduced:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "messages_produced_total"}),
		InvalidRecords:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "invalid_records_total"}),
		PipelineRunning:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		BatchSize:               prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_size"}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "batch_processing_duration_seconds"}),
		Assessments:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "assessments_total"}, []string{"risk_level"}),
		WeatherRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_requests_total"}, []string{"tier", "outcome"}),
		WeatherFallbacks:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "weather_fallbacks_total"}, []string{"to"}),
		WeatherAPIDuration:      prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "weather_api_duration_seconds"}, []string{"tier"}),
		AIRequests:              prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "ai_requests_total"}, []string{"outcome"}),
		AICache:                 prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "ai_cache_total"}, []string{"result"}),
		AIEnabled:               prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ai_enabled"}),
	}
}
