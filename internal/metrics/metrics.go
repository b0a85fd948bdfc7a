package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	PipelinesStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpro_pipelines_started_total",
			Help: "Total number of creative pipelines started",
		},
		[]string{"platform"},
	)

	PipelinesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpro_pipelines_completed_total",
			Help: "Total number of creative pipelines completed",
		},
		[]string{"platform", "status"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpro_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"platform"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpro_stage_duration_seconds",
			Help:    "Per-stage pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// Semantic cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpro_cache_lookups_total",
			Help: "Semantic cache lookups by category and outcome (exact_hit, semantic_hit, miss, error)",
		},
		[]string{"category", "outcome"},
	)

	CacheEntriesSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpro_cache_entries_swept_total",
			Help: "Expired cache entries removed by sweeps or lazy reads",
		},
		[]string{"category"},
	)

	// Model call metrics
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpro_model_calls_total",
			Help: "External reasoning-model calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpro_model_call_duration_seconds",
			Help:    "Reasoning-model call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		},
		[]string{"provider"},
	)

	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpro_embedding_requests_total",
			Help: "Embedding requests by outcome (lru_hit, cache_hit, ok, error)",
		},
		[]string{"outcome"},
	)

	ImageGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpro_image_generations_total",
			Help: "Image generation attempts by provider and outcome (ok, quota, error)",
		},
		[]string{"provider", "outcome"},
	)

	GenerationCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpro_generation_cost_usd_total",
			Help: "Accumulated external model spend in USD",
		},
		[]string{"agent"},
	)

	ArtifactsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "launchpro_artifacts_persisted_total",
			Help: "Creative artifacts written to blob storage",
		},
	)

	OverlayFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "launchpro_overlay_fallbacks_total",
			Help: "Text overlay renders that degraded to the no-text gradient",
		},
	)
)

// RecordCacheLookup records one cache lookup outcome.
func RecordCacheLookup(category, outcome string) {
	CacheLookups.WithLabelValues(category, outcome).Inc()
}

// RecordModelCall records one reasoning-model call.
func RecordModelCall(provider, outcome string, seconds float64) {
	ModelCalls.WithLabelValues(provider, outcome).Inc()
	if seconds > 0 {
		ModelCallDuration.WithLabelValues(provider).Observe(seconds)
	}
}

// RecordEmbedding records one embedding request outcome.
func RecordEmbedding(outcome string) {
	EmbeddingRequests.WithLabelValues(outcome).Inc()
}

// RecordImageGeneration records one image generation attempt.
func RecordImageGeneration(provider, outcome string) {
	ImageGenerations.WithLabelValues(provider, outcome).Inc()
}
