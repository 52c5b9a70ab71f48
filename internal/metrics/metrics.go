package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Research run metrics
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trident_research_runs_started_total",
			Help: "Total number of research runs started",
		},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trident_research_runs_completed_total",
			Help: "Total number of research runs completed",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trident_research_run_duration_seconds",
			Help:    "End-to-end research run duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Branch metrics
	BranchesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trident_branches_executed_total",
			Help: "Total number of research branches executed",
		},
		[]string{"query_type", "status"},
	)

	BranchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trident_branch_duration_seconds",
			Help:    "Research branch duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"query_type"},
	)

	// Search metrics
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trident_search_requests_total",
			Help: "Total number of search API requests",
		},
		[]string{"status"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trident_search_duration_seconds",
			Help:    "Search API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Fetch metrics
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trident_pages_fetched_total",
			Help: "Total number of page fetch attempts",
		},
		[]string{"status"},
	)

	PageCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trident_page_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	// Query expansion metrics
	ExpansionFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trident_expansion_fallbacks_total",
			Help: "Total number of query expansions that used the deterministic fallback",
		},
	)

	// LLM metrics
	LLMTokensUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trident_llm_tokens_used",
			Help:    "Number of tokens used per LLM call",
			Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 20000},
		},
		[]string{"agent_id"},
	)

	// Streaming metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trident_events_published_total",
			Help: "Total number of progress events published",
		},
		[]string{"severity"},
	)

	ActiveStreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trident_active_stream_clients",
			Help: "Number of connected SSE and WebSocket clients",
		},
	)
)

// RecordRunMetrics records metrics for a completed research run
func RecordRunMetrics(status string, durationSeconds float64) {
	RunsCompleted.WithLabelValues(status).Inc()
	RunDuration.Observe(durationSeconds)
}

// RecordBranchMetrics records metrics for a research branch execution
func RecordBranchMetrics(queryType, status string, durationSeconds float64) {
	BranchesExecuted.WithLabelValues(queryType, status).Inc()
	BranchDuration.WithLabelValues(queryType).Observe(durationSeconds)
}

// RecordSearchMetrics records metrics for a search API call
func RecordSearchMetrics(status string, durationSeconds float64) {
	SearchRequests.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		SearchDuration.Observe(durationSeconds)
	}
}

// RecordLLMTokens records token usage for an LLM call
func RecordLLMTokens(agentID string, tokens int) {
	if tokens > 0 {
		LLMTokensUsed.WithLabelValues(agentID).Observe(float64(tokens))
	}
}
