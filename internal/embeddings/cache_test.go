package embeddings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alicebob/miniredis/v2"
)

func TestLocalLRUExpiry(t *testing.T) {
	lru := NewLocalLRU(4)
	ctx := context.Background()

	lru.Set(ctx, "k", []float32{1, 2, 3}, 50*time.Millisecond)
	v, ok := lru.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)

	time.Sleep(60 * time.Millisecond)
	_, ok = lru.Get(ctx, "k")
	assert.False(t, ok, "expired entry must read as a miss")
}

func TestLocalLRUEviction(t *testing.T) {
	lru := NewLocalLRU(2)
	ctx := context.Background()

	lru.Set(ctx, "a", []float32{1}, time.Minute)
	lru.Set(ctx, "b", []float32{2}, time.Minute)
	// Touch "a" so "b" is the eviction candidate.
	_, _ = lru.Get(ctx, "a")
	lru.Set(ctx, "c", []float32{3}, time.Minute)

	_, okA := lru.Get(ctx, "a")
	_, okB := lru.Get(ctx, "b")
	_, okC := lru.Get(ctx, "c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}

func TestRedisVectorCacheRoundTrip(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	cache, err := NewRedisVectorCache(s.Addr(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	vec := []float32{0.25, -1.5, 3.75}
	cache.Set(ctx, "emb:test", vec, time.Minute)

	got, ok := cache.Get(ctx, "emb:test")
	require.True(t, ok)
	assert.Equal(t, vec, got)

	_, ok = cache.Get(ctx, "emb:absent")
	assert.False(t, ok)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine(nil, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1}))
}
