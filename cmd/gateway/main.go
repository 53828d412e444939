package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"triagegate/internal/analysis"
	"triagegate/internal/cache"
	"triagegate/internal/handlers"
	"triagegate/internal/httpserver"
	"triagegate/internal/llm"
	"triagegate/internal/metrics"
	"triagegate/pkg/logging/logging"
)

type Config struct {
	Port            string
	RedisAddr       string // empty = volatile-only cache
	CachePrefix     string
	CacheTTL        time.Duration
	MemoryCapacity  int
	PatternCapacity int
	StoreTimeout    time.Duration
	CleanupInterval time.Duration
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
}

func LoadConfig() Config {
	return Config{
		Port:            getenv("PORT", "8080"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		CachePrefix:     getenv("CACHE_PREFIX", "triagegate"),
		CacheTTL:        getenvDuration("CACHE_TTL", time.Hour),
		MemoryCapacity:  getenvInt("MEMORY_CAPACITY", cache.DefaultMemoryCapacity),
		PatternCapacity: getenvInt("PATTERN_CAPACITY", cache.DefaultPatternCapacity),
		StoreTimeout:    getenvDuration("STORE_TIMEOUT", cache.DefaultStoreTimeout),
		CleanupInterval: getenvDuration("CLEANUP_INTERVAL", 15*time.Minute),
		LLMBaseURL:      getenv("LLM_BASE_URL", "https://api.openai.com"),
		LLMAPIKey:       os.Getenv("LLM_API_KEY"),
		LLMModel:        getenv("LLM_MODEL", "gpt-4o-mini"),
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("memory_capacity", cfg.MemoryCapacity),
		zap.Int("pattern_capacity", cfg.PatternCapacity),
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
		zap.String("llm_base_url", cfg.LLMBaseURL),
	)

	// ----- Durable store (optional) -----
	var store cache.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// The store is allowed to be down at startup; the engine
		// degrades to the volatile tiers. Log the state either way.
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable at startup, running degraded",
				zap.String("addr", cfg.RedisAddr),
				zap.Error(err),
			)
		} else {
			logger.Info("redis connection established",
				zap.String("addr", cfg.RedisAddr),
			)
		}

		store = cache.NewRedisStore(redisClient, cache.RedisStoreConfig{
			Prefix:    cfg.CachePrefix,
			OpTimeout: cfg.StoreTimeout,
		})
	}

	// ----- Cache engine -----
	engine := cache.NewEngine(cache.Config{
		MemoryCapacity:  cfg.MemoryCapacity,
		PatternCapacity: cfg.PatternCapacity,
	}, store)
	cacheFacade := cache.NewLoggingEngine(engine)
	defer cacheFacade.Close()

	// ----- LLM client + analyzer -----
	if cfg.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}

	llmClient, err := llm.NewClient(llm.Config{
		BaseURL: cfg.LLMBaseURL,
		APIKey:  cfg.LLMAPIKey,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	analyzer := analysis.NewCachedAnalyzer(
		analysis.NewLLMAnalyzer(llmClient, cfg.LLMModel, logger),
		cacheFacade,
		cfg.CacheTTL,
	)

	// ----- Handlers -----
	analyzeHandler := handlers.NewAnalyzeHandler(analyzer)
	adminHandler := handlers.NewAdminHandler(cacheFacade)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, analyzeHandler, adminHandler)

	// ----- Background expiry sweep -----
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if store != nil && cfg.CleanupInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					cacheFacade.CleanupExpired(sweepCtx)
				case <-sweepCtx.Done():
					return
				}
			}
		}()
	}

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.Bool("persistent_tier", store != nil),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
