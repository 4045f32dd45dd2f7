package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// AssistantMetrics is returned by GET /v1/metrics/assistant.
type AssistantMetrics struct {
	TotalRequests       int64   `json:"totalRequests"`
	FallbackRate        float64 `json:"fallbackRate"`
	TimeoutFallbacks    int64   `json:"timeoutFallbacks"`
	EnrichmentFailures  int64   `json:"enrichmentFailures"`
	AvgTokensPerRequest float64 `json:"avgTokensPerRequest"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	Period              string  `json:"period"`
}
