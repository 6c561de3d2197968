package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rule and catalog sources reported with every pricing pass.
const (
	SourceLive     = "live"
	SourceSnapshot = "snapshot"
	SourceNone     = "none"
)

var (
	// evaluations counts pricing passes by where the rule set came from.
	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_evaluations_total",
		Help: "Total number of pricing passes by rule source",
	}, []string{"source"})

	productsPriced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_products_priced_total",
		Help: "Total number of products run through the rule engine",
	})

	productsDiscounted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_products_discounted_total",
		Help: "Total number of priced products that ended below their original price",
	})

	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricing_evaluation_duration_seconds",
		Help:    "Time taken to load and price the catalog",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	})

	// fallbacks counts degraded loads. collection: rules, catalog. to: snapshot, none.
	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_fallbacks_total",
		Help: "Total number of storage fallbacks by collection and target",
	}, []string{"collection", "to"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Recorder provides methods to record pricing and HTTP metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordEvaluation records one pricing pass over priced products.
func (m *Recorder) RecordEvaluation(source string, priced, discounted int, duration time.Duration) {
	evaluations.WithLabelValues(source).Inc()
	productsPriced.Add(float64(priced))
	productsDiscounted.Add(float64(discounted))
	evaluationDuration.Observe(duration.Seconds())
}

// RecordFallback records that collection was served from a degraded source.
func (m *Recorder) RecordFallback(collection, to string) {
	fallbacks.WithLabelValues(collection, to).Inc()
}

// RecordHTTPRequest records a finished HTTP request.
func (m *Recorder) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
