package semcache

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/launchpro/creative-engine/internal/circuitbreaker"
	"github.com/launchpro/creative-engine/internal/embeddings"
	"github.com/launchpro/creative-engine/internal/metrics"
)

// Cache is a get-or-compute cache keyed by exact key and by embedding
// similarity, backed by Redis. One hash per entry holds the payload, its
// embedding, lifecycle timestamps and a hit counter; a bounded per-category
// list tracks the recent window scanned for semantic matches.
//
// The cache is never a correctness dependency: every Redis or embedding
// failure degrades to a miss and the caller's compute function runs.
type Cache struct {
	cli      *redis.Client
	cb       *circuitbreaker.CircuitBreaker
	embedder embeddings.Embedder
	cfg      Config
	log      *zap.Logger
}

// New connects to Redis and returns a cache. embedder may be nil, which
// disables semantic matching but keeps exact-key caching.
func New(cfg Config, embedder embeddings.Embedder, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.92
	}
	if cfg.Window <= 0 {
		cfg.Window = 100
	}
	cli := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("semcache: redis ping: %w", err)
	}
	cb := circuitbreaker.NewCircuitBreaker("semcache-redis", circuitbreaker.RedisProfile().ToConfig(), logger)
	return &Cache{cli: cli, cb: cb, embedder: embedder, cfg: cfg, log: logger}, nil
}

// Ping probes the backing store. Used by health checks.
func (c *Cache) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *Cache) Close() error { return c.cli.Close() }

// entry hash fields
const (
	fieldKey     = "key"
	fieldPayload = "payload"
	fieldVector  = "vector"
	fieldCreated = "created"
	fieldExpires = "expires"
	fieldHits    = "hits"
)

func entryKey(cat Category, exactKey string) string {
	h := md5.Sum([]byte(exactKey))
	return fmt.Sprintf("cc:%s:%s", cat, hex.EncodeToString(h[:]))
}

func recentKey(cat Category) string {
	return fmt.Sprintf("cc:recent:%s", cat)
}

// GetOrCompute looks up exactKey in category, falls back to a similarity
// scan over the recent window when a non-empty similarityQuery is given, and
// finally invokes compute and stores its result. Returned bytes are the raw
// JSON payload; the typed wrapper in this package decodes them.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	cat Category,
	exactKey string,
	similarityQuery string,
	compute func(ctx context.Context) ([]byte, error),
) ([]byte, Lookup, error) {
	// (a) exact key
	if payload, ok, err := c.getExact(ctx, cat, exactKey); err != nil {
		metrics.RecordCacheLookup(string(cat), "error")
		c.log.Warn("cache lookup failed, computing", zap.String("category", string(cat)), zap.Error(err))
		data, cerr := compute(ctx)
		return data, Lookup{CacheError: err}, cerr
	} else if ok {
		metrics.RecordCacheLookup(string(cat), "exact_hit")
		return payload, Lookup{Hit: true, Similarity: 1}, nil
	}

	// (b) semantic scan
	if similarityQuery != "" && c.embedder != nil {
		if payload, sim, ok := c.semanticScan(ctx, cat, similarityQuery); ok {
			metrics.RecordCacheLookup(string(cat), "semantic_hit")
			return payload, Lookup{Hit: true, Semantic: true, Similarity: sim}, nil
		}
	}

	// (c) compute and store
	metrics.RecordCacheLookup(string(cat), "miss")
	data, err := compute(ctx)
	if err != nil {
		return nil, Lookup{}, err
	}
	c.store(ctx, cat, exactKey, similarityQuery, data)
	return data, Lookup{}, nil
}

// getExact reads the entry under exactKey, purging it when expired. The hit
// counter increments on every successful read.
func (c *Cache) getExact(ctx context.Context, cat Category, exactKey string) ([]byte, bool, error) {
	key := entryKey(cat, exactKey)
	var fields map[string]string
	err := c.cb.Execute(ctx, func() error {
		var err2 error
		fields, err2 = c.cli.HGetAll(ctx, key).Result()
		return err2
	})
	if err != nil {
		return nil, false, err
	}
	if len(fields) == 0 {
		return nil, false, nil
	}
	if expired(fields) {
		// lazy purge on read
		_ = c.cb.Execute(ctx, func() error { return c.cli.Del(ctx, key).Err() })
		metrics.CacheEntriesSwept.WithLabelValues(string(cat)).Inc()
		return nil, false, nil
	}
	_ = c.cb.Execute(ctx, func() error { return c.cli.HIncrBy(ctx, key, fieldHits, 1).Err() })
	return []byte(fields[fieldPayload]), true, nil
}

// semanticScan embeds the query and compares it against the bounded recent
// window of non-expired entries, accepting the best candidate at or above
// the threshold. Any failure along the way reads as a miss.
func (c *Cache) semanticScan(ctx context.Context, cat Category, query string) ([]byte, float64, bool) {
	qvec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		c.log.Debug("semantic scan skipped: embed failed", zap.Error(err))
		return nil, 0, false
	}

	var keys []string
	err = c.cb.Execute(ctx, func() error {
		var err2 error
		keys, err2 = c.cli.LRange(ctx, recentKey(cat), 0, int64(c.cfg.Window-1)).Result()
		return err2
	})
	if err != nil || len(keys) == 0 {
		return nil, 0, false
	}

	bestSim := -1.0
	var bestKey string
	var bestPayload []byte
	for _, key := range keys {
		var fields map[string]string
		if rerr := c.cb.Execute(ctx, func() error {
			var err2 error
			fields, err2 = c.cli.HGetAll(ctx, key).Result()
			return err2
		}); rerr != nil {
			// one unreadable entry must not sink the whole window
			c.log.Debug("semantic scan: entry read failed", zap.String("key", key), zap.Error(rerr))
			continue
		}
		if len(fields) == 0 || expired(fields) {
			continue
		}
		vec := decodeVector(fields[fieldVector])
		if len(vec) == 0 {
			continue
		}
		if sim := embeddings.Cosine(qvec, vec); sim > bestSim {
			bestSim = sim
			bestKey = key
			bestPayload = []byte(fields[fieldPayload])
		}
	}
	if bestSim < c.cfg.Threshold {
		return nil, 0, false
	}
	_ = c.cb.Execute(ctx, func() error { return c.cli.HIncrBy(ctx, bestKey, fieldHits, 1).Err() })
	return bestPayload, bestSim, true
}

// store writes an entry and pushes it into the recent window. Write failures
// are logged and dropped; the computed value has already been returned.
func (c *Cache) store(ctx context.Context, cat Category, exactKey, similarityQuery string, payload []byte) {
	key := entryKey(cat, exactKey)
	ttl := c.cfg.TTL(cat)
	now := time.Now()

	fields := map[string]interface{}{
		fieldKey:     exactKey,
		fieldPayload: payload,
		fieldCreated: now.Unix(),
		fieldExpires: now.Add(ttl).Unix(),
		fieldHits:    0,
	}
	if similarityQuery != "" && c.embedder != nil {
		if vec, err := c.embedder.Embed(ctx, similarityQuery); err == nil {
			fields[fieldVector] = encodeVector(vec)
		}
	}

	err := c.cb.Execute(ctx, func() error {
		pipe := c.cli.TxPipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		pipe.LPush(ctx, recentKey(cat), key)
		pipe.LTrim(ctx, recentKey(cat), 0, int64(c.cfg.Window-1))
		_, err2 := pipe.Exec(ctx)
		return err2
	})
	if err != nil {
		c.log.Warn("cache write dropped", zap.String("category", string(cat)), zap.Error(err))
	}
}

// Sweep removes every expired entry in a category's recent window and
// returns the number purged. Lazy per-read purging handles entries that
// drop out of the window.
func (c *Cache) Sweep(ctx context.Context, cat Category) (int, error) {
	var keys []string
	err := c.cb.Execute(ctx, func() error {
		var err2 error
		keys, err2 = c.cli.LRange(ctx, recentKey(cat), 0, -1).Result()
		return err2
	})
	if err != nil {
		return 0, fmt.Errorf("semcache: sweep: %w", err)
	}
	purged := 0
	for _, key := range keys {
		fields, err := c.cli.HGetAll(ctx, key).Result()
		if err != nil {
			continue
		}
		if len(fields) == 0 || expired(fields) {
			_ = c.cli.Del(ctx, key).Err()
			_ = c.cli.LRem(ctx, recentKey(cat), 0, key).Err()
			purged++
		}
	}
	if purged > 0 {
		metrics.CacheEntriesSwept.WithLabelValues(string(cat)).Add(float64(purged))
	}
	return purged, nil
}

// Hits returns the hit counter of the entry stored under exactKey.
func (c *Cache) Hits(ctx context.Context, cat Category, exactKey string) (int64, error) {
	v, err := c.cli.HGet(ctx, entryKey(cat, exactKey), fieldHits).Result()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func expired(fields map[string]string) bool {
	exp, err := strconv.ParseInt(fields[fieldExpires], 10, 64)
	if err != nil {
		return true
	}
	return time.Now().Unix() >= exp
}

func encodeVector(v []float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func decodeVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// GetOrCompute is the typed wrapper agents use: it JSON-encodes computed
// values and decodes cached payloads into T. A cache payload that fails to
// decode is treated as a miss and recomputed.
func GetOrCompute[T any](
	ctx context.Context,
	c *Cache,
	cat Category,
	exactKey string,
	similarityQuery string,
	compute func(ctx context.Context) (T, error),
) (T, Lookup, error) {
	var zero T
	if c == nil {
		v, err := compute(ctx)
		return v, Lookup{}, err
	}
	raw, lookup, err := c.GetOrCompute(ctx, cat, exactKey, similarityQuery, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, lookup, err
	}
	var out T
	if jerr := json.Unmarshal(raw, &out); jerr != nil {
		if lookup.Hit {
			// poisoned cache entry: recompute
			v, cerr := compute(ctx)
			return v, Lookup{CacheError: jerr}, cerr
		}
		return zero, lookup, fmt.Errorf("semcache: decode payload: %w", jerr)
	}
	return out, lookup, nil
}
