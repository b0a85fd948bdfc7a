package semcache

import "time"

// Category partitions the cache by pipeline stage. TTLs differ per category
// because the underlying truth changes at different speeds.
type Category string

const (
	CategoryResearch Category = "research"
	CategoryStrategy Category = "strategy"
	CategoryPrompts  Category = "prompts"
)

// Config controls cache behavior.
type Config struct {
	// RedisAddr is the backing store address.
	RedisAddr string
	// Threshold is the minimum cosine similarity for a semantic hit.
	Threshold float64
	// Window bounds how many recent entries per category are scanned for
	// similarity matches.
	Window int
	// TTLs maps categories to entry lifetimes. Missing categories fall
	// back to DefaultTTL.
	TTLs map[Category]time.Duration
	// DefaultTTL applies when a category has no explicit TTL.
	DefaultTTL time.Duration
}

// DefaultConfig returns the standing TTL table: research briefs hold for a
// day, strategies for half a day, image prompts for a week.
func DefaultConfig(redisAddr string) Config {
	return Config{
		RedisAddr: redisAddr,
		Threshold: 0.92,
		Window:    100,
		TTLs: map[Category]time.Duration{
			CategoryResearch: 24 * time.Hour,
			CategoryStrategy: 12 * time.Hour,
			CategoryPrompts:  7 * 24 * time.Hour,
		},
		DefaultTTL: time.Hour,
	}
}

// TTL returns the lifetime for a category.
func (c Config) TTL(cat Category) time.Duration {
	if ttl, ok := c.TTLs[cat]; ok {
		return ttl
	}
	if c.DefaultTTL > 0 {
		return c.DefaultTTL
	}
	return time.Hour
}

// Lookup describes how a GetOrCompute call was satisfied. The cache is
// best-effort infrastructure: lookup errors are swallowed and reported here,
// never returned to the caller.
type Lookup struct {
	Hit        bool
	Semantic   bool
	Similarity float64
	CacheError error
}
