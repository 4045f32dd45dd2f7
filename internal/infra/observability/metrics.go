package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// Fallback reasons recorded by the assistant pipeline.
const (
	FallbackTimeout = "timeout"
	FallbackError   = "error"
	FallbackEmpty   = "empty"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	tokensUsed         *prometheus.CounterVec
	requestsTotal      *prometheus.CounterVec
	intentMatches      *prometheus.CounterVec
	enrichmentFailures *prometheus.CounterVec
	fallbacks          *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_requests_total",
				Help: "Total chat replies produced, by outcome.",
			},
			[]string{"status"},
		),
		intentMatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_intent_matches_total",
				Help: "Order lookups planned from chat messages, by intent.",
			},
			[]string{"intent"},
		),
		enrichmentFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_enrichment_failures_total",
				Help: "Enrichers that failed and were left out of the prompt.",
			},
			[]string{"enricher"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_fallbacks_total",
				Help: "Replies replaced by a fallback string, by reason.",
			},
			[]string{"reason"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "assistant_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open).",
			},
			[]string{"name"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrRequest increments the request counter with a status label
// ("success" or "fallback").
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrIntentMatch counts one planned lookup for intent.
func (m *Metrics) IncrIntentMatch(intent string) {
	m.intentMatches.WithLabelValues(intent).Inc()
}

// IncrEnrichmentFailure counts an enricher left out of the prompt.
func (m *Metrics) IncrEnrichmentFailure(enricher string) {
	m.enrichmentFailures.WithLabelValues(enricher).Inc()
}

// IncrFallback counts a reply replaced by a fallback string.
func (m *Metrics) IncrFallback(reason string) {
	m.fallbacks.WithLabelValues(reason).Inc()
}

// SetBreakerState publishes a circuit breaker transition. Its signature
// matches resilience.StateListener.
func (m *Metrics) SetBreakerState(name string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(name).Set(float64(to))
}

// GetAssistantSnapshot returns a snapshot of assistant metrics suitable for
// the GET /v1/metrics/assistant endpoint.
func (m *Metrics) GetAssistantSnapshot() *domain.AssistantMetrics {
	// Prometheus counters expose cumulative values.
	promptTokens := getCounterValue(m.tokensUsed, "prompt")
	completionTokens := getCounterValue(m.tokensUsed, "completion")
	fallbackCount := getCounterValue(m.requestsTotal, "fallback")
	totalRequests := getCounterValue(m.requestsTotal, "success") + fallbackCount
	cacheHits := getCounterValue(m.cacheHits, "insights")
	cacheMisses := getCounterValue(m.cacheMisses, "insights")
	enrichmentFailures := getCounterValue(m.enrichmentFailures, "delay_risk") +
		getCounterValue(m.enrichmentFailures, "business")

	avgTokens := float64(0)
	fallbackRate := float64(0)
	cacheHitRate := float64(0)

	if totalRequests > 0 {
		avgTokens = (promptTokens + completionTokens) / totalRequests
		fallbackRate = fallbackCount / totalRequests
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.AssistantMetrics{
		TotalRequests:       int64(totalRequests),
		FallbackRate:        fallbackRate,
		TimeoutFallbacks:    int64(getCounterValue(m.fallbacks, FallbackTimeout)),
		EnrichmentFailures:  int64(enrichmentFailures),
		AvgTokensPerRequest: avgTokens,
		CacheHitRate:        cacheHitRate,
		Period:              "all_time",
	}
}

// CounterValue reads the current value of one labelled counter. Unknown
// metric names return 0.
func (m *Metrics) CounterValue(metric, label string) float64 {
	vecs := map[string]*prometheus.CounterVec{
		"external_errors":     m.externalErrors,
		"cache_hits":          m.cacheHits,
		"cache_misses":        m.cacheMisses,
		"tokens":              m.tokensUsed,
		"requests":            m.requestsTotal,
		"intent_matches":      m.intentMatches,
		"enrichment_failures": m.enrichmentFailures,
		"fallbacks":           m.fallbacks,
	}
	cv, ok := vecs[metric]
	if !ok {
		return 0
	}
	return getCounterValue(cv, label)
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
