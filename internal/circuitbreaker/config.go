package circuitbreaker

import (
	"os"
	"strconv"
	"time"
)

// Profile is the tunable configuration for one class of dependency.
type Profile struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
}

// LLMProfile returns the breaker profile for reasoning-model HTTP calls.
// Model calls are slow and expensive, so the breaker is lenient about volume
// but quick to back off a dead provider.
func LLMProfile() Profile {
	return Profile{
		MaxRequests:      getEnvUint32("CB_LLM_MAX_REQUESTS", 3),
		Interval:         getEnvDuration("CB_LLM_INTERVAL", 60*time.Second),
		Timeout:          getEnvDuration("CB_LLM_TIMEOUT", 30*time.Second),
		FailureThreshold: getEnvUint32("CB_LLM_FAILURE_THRESHOLD", 4),
		SuccessThreshold: getEnvUint32("CB_LLM_SUCCESS_THRESHOLD", 2),
	}
}

// ImageProfile returns the breaker profile for image-generation HTTP calls.
func ImageProfile() Profile {
	return Profile{
		MaxRequests:      getEnvUint32("CB_IMAGE_MAX_REQUESTS", 2),
		Interval:         getEnvDuration("CB_IMAGE_INTERVAL", 60*time.Second),
		Timeout:          getEnvDuration("CB_IMAGE_TIMEOUT", 45*time.Second),
		FailureThreshold: getEnvUint32("CB_IMAGE_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_IMAGE_SUCCESS_THRESHOLD", 1),
	}
}

// RedisProfile returns the breaker profile for cache traffic. The cache is
// best-effort infrastructure, so the breaker trips early and recovers fast.
func RedisProfile() Profile {
	return Profile{
		MaxRequests:      getEnvUint32("CB_REDIS_MAX_REQUESTS", 5),
		Interval:         getEnvDuration("CB_REDIS_INTERVAL", 30*time.Second),
		Timeout:          getEnvDuration("CB_REDIS_TIMEOUT", 15*time.Second),
		FailureThreshold: getEnvUint32("CB_REDIS_FAILURE_THRESHOLD", 3),
		SuccessThreshold: getEnvUint32("CB_REDIS_SUCCESS_THRESHOLD", 2),
	}
}

// DatabaseProfile returns the breaker profile for the campaign read store.
func DatabaseProfile() Profile {
	return Profile{
		MaxRequests:      getEnvUint32("CB_DB_MAX_REQUESTS", 3),
		Interval:         getEnvDuration("CB_DB_INTERVAL", 60*time.Second),
		Timeout:          getEnvDuration("CB_DB_TIMEOUT", 30*time.Second),
		FailureThreshold: getEnvUint32("CB_DB_FAILURE_THRESHOLD", 5),
		SuccessThreshold: getEnvUint32("CB_DB_SUCCESS_THRESHOLD", 2),
	}
}

// ToConfig converts a Profile to a breaker Config.
func (p Profile) ToConfig() Config {
	return Config{
		MaxRequests:      p.MaxRequests,
		Interval:         p.Interval,
		Timeout:          p.Timeout,
		FailureThreshold: p.FailureThreshold,
		SuccessThreshold: p.SuccessThreshold,
	}
}

func getEnvUint32(key string, defaultValue uint32) uint32 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 32); err == nil {
			return uint32(parsed)
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}
