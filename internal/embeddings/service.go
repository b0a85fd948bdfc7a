package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/launchpro/creative-engine/internal/metrics"
)

// Service provides embedding generation with a two-level cache: an
// in-process LRU in front of an optional shared Redis layer.
type Service struct {
	cfg    Config
	client openai.Client
	cache  VectorCache
	lru    *LocalLRU
}

// NewService constructs an embedding service. cache may be nil.
func NewService(cfg Config, cache VectorCache) *Service {
	c := cfg
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Model == "" {
		c.Model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.MaxLRU == 0 {
		c.MaxLRU = 2048
	}
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	return &Service{cfg: c, client: openai.NewClient(opts...), cache: cache, lru: NewLocalLRU(c.MaxLRU)}
}

// Embed returns the vector for a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embeddings: empty text")
	}
	key := MakeKey(s.cfg.Model, text)

	// LRU first
	if v, ok := s.lru.Get(ctx, key); ok {
		metrics.RecordEmbedding("lru_hit")
		return v, nil
	}
	// Shared cache next
	if s.cache != nil {
		if v, ok := s.cache.Get(ctx, key); ok {
			s.lru.Set(ctx, key, v, 30*time.Minute)
			metrics.RecordEmbedding("cache_hit")
			return v, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openai.EmbeddingModel(s.cfg.Model),
	})
	if err != nil {
		metrics.RecordEmbedding("error")
		return nil, fmt.Errorf("embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		metrics.RecordEmbedding("empty")
		return nil, fmt.Errorf("embeddings: no vectors returned")
	}
	out := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		out[i] = float32(f)
	}
	metrics.RecordEmbedding("ok")

	s.lru.Set(ctx, key, out, 30*time.Minute)
	if s.cache != nil {
		s.cache.Set(ctx, key, out, s.cfg.CacheTTL)
	}
	return out, nil
}
