// Package metrics provides Prometheus metrics export for the answering service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrygo/virtualclone/ai/answering"
)

const namespace = "virtualclone"

// PrometheusExporter exports answering metrics in Prometheus format. It
// implements answering.Observer.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Answer metrics
	answers       *prometheus.CounterVec
	answerLatency *prometheus.HistogramVec

	// Question answerer metrics
	qaRequests *prometheus.CounterVec
	qaLatency  prometheus.Histogram

	// Answer cache metrics
	cacheLookups   *prometheus.CounterVec
	cacheEvictions prometheus.Counter
	cacheSize      prometheus.Gauge

	// Surface metrics
	translations  *prometheus.CounterVec
	chatActive    prometheus.Gauge
	webhookEvents *prometheus.CounterVec
}

var _ answering.Observer = (*PrometheusExporter)(nil)

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64

	// GoCollectors adds the Go runtime and process collectors.
	GoCollectors bool
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.answers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "answering",
			Name:      "answers_total",
			Help:      "Total number of answers by repetition mode and answer source",
		},
		[]string{"mode", "source"},
	)

	e.answerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "answering",
			Name:      "answer_latency_seconds",
			Help:      "End-to-end answer latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"mode"},
	)

	e.qaRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "answering",
			Name:      "question_answerer_requests_total",
			Help:      "Total number of question answerer calls",
		},
		[]string{"status"},
	)

	e.qaLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "answering",
			Name:      "question_answerer_latency_seconds",
			Help:      "Question answerer latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)

	e.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "answer_cache",
			Name:      "lookups_total",
			Help:      "Total number of answer cache lookups on repeated questions",
		},
		[]string{"result"},
	)

	e.cacheEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "answer_cache",
			Name:      "evictions_total",
			Help:      "Total number of fingerprints evicted from the answer cache",
		},
	)

	e.cacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "answer_cache",
			Name:      "fingerprints",
			Help:      "Number of fingerprints held by the answer cache",
		},
	)

	e.translations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "translations_total",
			Help:      "Total number of translations",
		},
		[]string{"direction", "status"},
	)

	e.chatActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "chat_in_flight",
			Help:      "Number of chat requests being answered",
		},
	)

	e.webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat_apps",
			Name:      "webhook_events_total",
			Help:      "Total number of chat app webhook events by platform and outcome",
		},
		[]string{"platform", "event"},
	)

	registry.MustRegister(
		e.answers,
		e.answerLatency,
		e.qaRequests,
		e.qaLatency,
		e.cacheLookups,
		e.cacheEvictions,
		e.cacheSize,
		e.translations,
		e.chatActive,
		e.webhookEvents,
	)
	if cfg.GoCollectors {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return e
}

// ObserveAnswer records one engine answer.
func (e *PrometheusExporter) ObserveAnswer(mode answering.Mode, source answering.Source, d time.Duration) {
	e.answers.WithLabelValues(string(mode), string(source)).Inc()
	e.answerLatency.WithLabelValues(string(mode)).Observe(d.Seconds())
}

// ObserveQuestionAnswerer records one question answerer call.
func (e *PrometheusExporter) ObserveQuestionAnswerer(err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	e.qaRequests.WithLabelValues(status).Inc()
	e.qaLatency.Observe(d.Seconds())
}

// ObserveCacheLookup records an answer cache lookup.
func (e *PrometheusExporter) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	e.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheEviction records an answer cache eviction.
func (e *PrometheusExporter) ObserveCacheEviction() {
	e.cacheEvictions.Inc()
}

// SetCacheSize sets the answer cache size gauge.
func (e *PrometheusExporter) SetCacheSize(n int) {
	e.cacheSize.Set(float64(n))
}

// RecordTranslation records a translation. direction is "inbound" or "outbound".
func (e *PrometheusExporter) RecordTranslation(direction string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	e.translations.WithLabelValues(direction, status).Inc()
}

// ChatStarted increments the in-flight chat gauge; call the returned func when done.
func (e *PrometheusExporter) ChatStarted() func() {
	e.chatActive.Inc()
	return e.chatActive.Dec
}

// RecordWebhookEvent records a chat app webhook outcome such as "received",
// "rejected", "ignored", "answered" or "send_error".
func (e *PrometheusExporter) RecordWebhookEvent(platform, event string) {
	e.webhookEvents.WithLabelValues(platform, event).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// Registry returns the Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
