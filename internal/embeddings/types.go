package embeddings

import (
	"context"
	"time"
)

// Config controls the embedding service behavior.
type Config struct {
	// APIKey authenticates against the embedding provider.
	APIKey string
	// BaseURL overrides the provider endpoint (optional, for proxies).
	BaseURL string
	// Model is the embedding model (e.g. text-embedding-3-small).
	Model string
	// Timeout for outbound calls.
	Timeout time.Duration
	// RedisAddr enables the shared Redis read-through layer when non-empty.
	RedisAddr string
	// CacheTTL sets TTL for Redis-cached vectors.
	CacheTTL time.Duration
	// MaxLRU controls the in-process LRU size.
	MaxLRU int
}

// Embedder turns text into a fixed-length vector for similarity comparison.
// The semantic cache and the agents depend on this interface so tests can
// substitute deterministic fakes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
