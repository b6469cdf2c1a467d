package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "satchange"

// Metrics holds the Prometheus counters, histograms, and gauges for the analysis service.
type Metrics struct {
	AnalysisRequests *prometheus.CounterVec   // labels: endpoint={analyze,analyze_image,compare}, outcome={success,partial,error}
	AnalysisDuration *prometheus.HistogramVec // labels: endpoint

	// Imagery metrics.
	ImagesFetched *prometheus.CounterVec   // labels: source, outcome={success,unavailable,error}
	FetchDuration *prometheus.HistogramVec // labels: source
	ActiveSource  *prometheus.GaugeVec     // labels: source

	// Embedding metrics.
	Embeddings     *prometheus.CounterVec // labels: model, outcome={success,error}
	EmbedDuration  prometheus.Histogram
	EmbeddingCache *prometheus.CounterVec // labels: result={hit,miss}
	ChangeSeverity prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={forward,reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={forward,reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={forward,reverse}

	// Sinks.
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
	ImagesCataloged prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.AnalysisRequests,
		m.AnalysisDuration,
		m.ImagesFetched,
		m.FetchDuration,
		m.ActiveSource,
		m.Embeddings,
		m.EmbedDuration,
		m.EmbeddingCache,
		m.ChangeSeverity,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.EventsPublished,
		m.PublishErrors,
		m.ImagesCataloged,
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
		AnalysisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_requests_total",
			Help:      "Analysis requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"endpoint"}),
		ImagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_fetched_total",
			Help:      "Yearly image fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single year's search and download.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		ActiveSource: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_source",
			Help:      "1 for the active imagery source, 0 otherwise.",
		}, []string{"source"}),
		Embeddings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_total",
			Help:      "Embedding requests by model and outcome.",
		}, []string{"model", "outcome"}),
		EmbedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_duration_seconds",
			Help:      "Embedding inference duration.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		EmbeddingCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"result"}),
		ChangeSeverity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "change_severity",
			Help:      "Severity of computed change records.",
			Buckets:   []float64{0.04, 0.16, 0.4, 0.6, 0.8, 1},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Analysis events written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed analysis event writes.",
		}),
		ImagesCataloged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_cataloged_total",
			Help:      "Fetched images saved to the image catalog.",
		}),
	}
}
