package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/launchpro/creative-engine/internal/agents/assembly"
	"github.com/launchpro/creative-engine/internal/agents/assets"
	"github.com/launchpro/creative-engine/internal/agents/prompts"
	"github.com/launchpro/creative-engine/internal/agents/research"
	"github.com/launchpro/creative-engine/internal/agents/strategy"
	"github.com/launchpro/creative-engine/internal/config"
	"github.com/launchpro/creative-engine/internal/db"
	"github.com/launchpro/creative-engine/internal/embeddings"
	"github.com/launchpro/creative-engine/internal/health"
	"github.com/launchpro/creative-engine/internal/httpapi"
	"github.com/launchpro/creative-engine/internal/imagegen"
	"github.com/launchpro/creative-engine/internal/llm"
	"github.com/launchpro/creative-engine/internal/orchestrator"
	"github.com/launchpro/creative-engine/internal/overlay"
	"github.com/launchpro/creative-engine/internal/pricing"
	"github.com/launchpro/creative-engine/internal/semcache"
	"github.com/launchpro/creative-engine/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	table := pricing.Load(cfg.Pricing.Path, logger)
	defer table.Close()

	hm := health.NewManager(logger)

	// Semantic cache. Optional: the pipeline runs uncached when Redis is
	// down or caching is disabled.
	var cache *semcache.Cache
	if cfg.Cache.Enabled {
		embedder := buildEmbedder(cfg, logger)
		cache, err = semcache.New(semcache.Config{
			RedisAddr: cfg.Redis.Addr,
			Threshold: cfg.Cache.Threshold,
			Window:    cfg.Cache.Window,
			TTLs: map[semcache.Category]time.Duration{
				semcache.CategoryResearch: cfg.Cache.TTLs.Research,
				semcache.CategoryStrategy: cfg.Cache.TTLs.Strategy,
				semcache.CategoryPrompts:  cfg.Cache.TTLs.Prompts,
			},
		}, embedder, logger)
		if err != nil {
			logger.Warn("Semantic cache unavailable, running uncached", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
			hm.Register(health.CheckFunc{ComponentName: "redis", IsCritical: false, Fn: cache.Ping})
			go sweepLoop(ctx, cache, cfg.Cache.SweepEach, logger)
		}
	}

	dbClient, err := db.NewClient(db.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		MaxConnections:  cfg.Database.MaxConnections,
		IdleConnections: cfg.Database.IdleConnections,
		MaxLifetime:     cfg.Database.MaxLifetime,
		SSLMode:         cfg.Database.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbClient.Close()
	hm.Register(health.CheckFunc{ComponentName: "database", IsCritical: true, Fn: dbClient.HealthCheck})

	store, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize artifact storage", zap.Error(err))
	}

	textProvider := llm.WithRetries(
		buildTextProvider(cfg, logger),
		cfg.Providers.RetryAttempts,
		cfg.Providers.RetryBackoff,
		logger,
	)

	renderer, err := overlay.NewRenderer()
	if err != nil {
		logger.Fatal("Failed to initialize overlay renderer", zap.Error(err))
	}

	o := orchestrator.New(
		research.New(textProvider, cache, table, logger),
		assets.New(dbClient, logger),
		strategy.New(textProvider, cache, table, logger),
		prompts.New(textProvider, cache, table, logger),
		assembly.New(
			buildImageProvider(cfg.Providers.Image, logger),
			buildFallbackImageProvider(cfg.Providers.ImageFallback, logger),
			renderer, store, table,
			assembly.Config{
				MaxImages:     cfg.Assembly.MaxImages,
				URLExpiry:     cfg.Storage.URLExpiry,
				RatePerMinute: cfg.Assembly.RatePerMinute,
			}, logger),
		strategy.DefaultBrief,
		logger,
	)

	mux := http.NewServeMux()
	httpapi.NewHandler(o, cfg.Server.RequestTimeout, logger).RegisterRoutes(mux)
	health.NewHTTPHandler(hm, logger).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 30*time.Second,
	}

	go func() {
		logger.Info("Creative engine listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown incomplete", zap.Error(err))
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func buildEmbedder(cfg *config.Config, logger *zap.Logger) embeddings.Embedder {
	var vectorCache embeddings.VectorCache
	if rc, err := embeddings.NewRedisVectorCache(cfg.Redis.Addr, logger); err == nil {
		vectorCache = rc
	} else {
		logger.Warn("Embedding vector cache unavailable", zap.Error(err))
	}
	return embeddings.NewService(embeddings.Config{
		APIKey:  cfg.Providers.Embeddings.APIKey,
		BaseURL: cfg.Providers.Embeddings.BaseURL,
		Model:   cfg.Providers.Embeddings.Model,
	}, vectorCache)
}

func buildStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.BlobStore, error) {
	if cfg.Storage.Backend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:   cfg.Storage.Bucket,
			Region:   cfg.Storage.Region,
			Endpoint: cfg.Storage.Endpoint,
			Prefix:   cfg.Storage.Prefix,
		}, logger)
	}
	return storage.NewLocalStore(cfg.Storage.LocalDir)
}

func buildTextProvider(cfg *config.Config, logger *zap.Logger) llm.Provider {
	p := cfg.Providers.Text
	if p.Backend == "bridge" {
		return llm.NewBridgeProvider(llm.BridgeConfig{BaseURL: p.BaseURL}, logger)
	}
	return llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:      p.APIKey,
		BaseURL:     p.BaseURL,
		Model:       p.Model,
		SearchModel: p.SearchModel,
	})
}

func buildImageProvider(p config.ProviderConfig, logger *zap.Logger) imagegen.Provider {
	if p.Backend == "bridge" {
		return imagegen.NewBridgeProvider(imagegen.BridgeConfig{BaseURL: p.BaseURL, Model: p.Model}, logger)
	}
	return imagegen.NewOpenAIProvider(imagegen.OpenAIConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.Model,
	})
}

func buildFallbackImageProvider(p config.ProviderConfig, logger *zap.Logger) imagegen.Provider {
	if p.Backend == "" {
		return nil
	}
	return buildImageProvider(p, logger)
}

// sweepLoop removes expired cache entries in bulk so the recent windows stay
// dense with live entries.
func sweepLoop(ctx context.Context, cache *semcache.Cache, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, cat := range []semcache.Category{
				semcache.CategoryResearch,
				semcache.CategoryStrategy,
				semcache.CategoryPrompts,
			} {
				n, err := cache.Sweep(ctx, cat)
				if err != nil {
					logger.Warn("cache sweep failed", zap.String("category", string(cat)), zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Debug("cache sweep", zap.String("category", string(cat)), zap.Int("removed", n))
				}
			}
		}
	}
}
