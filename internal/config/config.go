// Package config loads the engine configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Assembly  AssemblyConfig  `mapstructure:"assembly"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	IdleConnections int           `mapstructure:"idle_connections"`
	MaxLifetime     time.Duration `mapstructure:"max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type StorageConfig struct {
	Backend   string        `mapstructure:"backend"` // "s3" or "local"
	Bucket    string        `mapstructure:"bucket"`
	Region    string        `mapstructure:"region"`
	Endpoint  string        `mapstructure:"endpoint"`
	Prefix    string        `mapstructure:"prefix"`
	LocalDir  string        `mapstructure:"local_dir"`
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

// ProviderConfig selects one backend for a generation concern.
type ProviderConfig struct {
	Backend     string `mapstructure:"backend"` // "openai" or "bridge"
	Model       string `mapstructure:"model"`
	SearchModel string `mapstructure:"search_model"`
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
}

type ProvidersConfig struct {
	Text          ProviderConfig `mapstructure:"text"`
	Image         ProviderConfig `mapstructure:"image"`
	ImageFallback ProviderConfig `mapstructure:"image_fallback"`
	Embeddings    ProviderConfig `mapstructure:"embeddings"`
	RetryAttempts int            `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration  `mapstructure:"retry_backoff"`
}

type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Threshold float64       `mapstructure:"threshold"`
	Window    int           `mapstructure:"window"`
	TTLs      TTLConfig     `mapstructure:"ttls"`
	SweepEach time.Duration `mapstructure:"sweep_interval"`
}

type TTLConfig struct {
	Research time.Duration `mapstructure:"research"`
	Strategy time.Duration `mapstructure:"strategy"`
	Prompts  time.Duration `mapstructure:"prompts"`
}

type AssemblyConfig struct {
	MaxImages     int `mapstructure:"max_images"`
	RatePerMinute int `mapstructure:"rate_per_minute"`
}

type PricingConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads the config file at path (or CONFIG_PATH, or
// config/creative.yaml) and applies LAUNCHPRO_* environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/creative.yaml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("LAUNCHPRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		// Missing file: run on defaults and env.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "artifacts")
	v.SetDefault("storage.url_expiry", 72*time.Hour)
	v.SetDefault("providers.text.backend", "openai")
	v.SetDefault("providers.image.backend", "openai")
	v.SetDefault("providers.retry_attempts", 2)
	v.SetDefault("providers.retry_backoff", 2*time.Second)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.threshold", 0.92)
	v.SetDefault("cache.window", 100)
	v.SetDefault("cache.ttls.research", 24*time.Hour)
	v.SetDefault("cache.ttls.strategy", 12*time.Hour)
	v.SetDefault("cache.ttls.prompts", 7*24*time.Hour)
	v.SetDefault("cache.sweep_interval", time.Hour)
	v.SetDefault("assembly.max_images", 4)
	v.SetDefault("assembly.rate_per_minute", 10)
	v.SetDefault("pricing.path", "config/pricing.yaml")
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	if c.Cache.Threshold < 0 || c.Cache.Threshold > 1 {
		return fmt.Errorf("config: cache threshold %v outside [0,1]", c.Cache.Threshold)
	}
	switch c.Storage.Backend {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: s3 storage requires a bucket")
		}
	case "local":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Providers.Text.Backend {
	case "openai", "bridge":
	default:
		return fmt.Errorf("config: unknown text provider backend %q", c.Providers.Text.Backend)
	}
	return nil
}
