// Command server starts the product search API.
//
// It loads the product corpus, builds the in-memory BM25 index, and serves
// field-weighted search at GET /api/v1/search with per-session behavioral
// tracking (missions, clicks, dwell time). Redis caching, Kafka analytics
// shipping, and the LLM recommendation call are all optional; the service
// degrades gracefully when any of them is unavailable.
//
// Usage:
//
//	go run ./cmd/server [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/searchlab/prodsearch/internal/analytics"
	"github.com/searchlab/prodsearch/internal/corpus"
	"github.com/searchlab/prodsearch/internal/generation"
	"github.com/searchlab/prodsearch/internal/geo"
	"github.com/searchlab/prodsearch/internal/search"
	"github.com/searchlab/prodsearch/internal/search/cache"
	"github.com/searchlab/prodsearch/internal/server"
	"github.com/searchlab/prodsearch/internal/session"
	"github.com/searchlab/prodsearch/pkg/config"
	"github.com/searchlab/prodsearch/pkg/health"
	"github.com/searchlab/prodsearch/pkg/kafka"
	"github.com/searchlab/prodsearch/pkg/logger"
	"github.com/searchlab/prodsearch/pkg/metrics"
	pkgredis "github.com/searchlab/prodsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("search-api", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "corpus", cfg.Corpus.Path)

	docs, err := corpus.Load(cfg.Corpus.Path)
	if err != nil {
		slog.Error("failed to load corpus", "path", cfg.Corpus.Path, "error", err)
		os.Exit(1)
	}
	engine := search.New(docs)
	idx := engine.Index()
	slog.Info("index built",
		"documents", idx.DocCount,
		"terms", len(idx.Postings),
		"avg_doc_length", idx.AvgDocLength,
	)

	m := metrics.New()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	collector := analytics.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	sessions := session.NewStore(cfg.Session)
	assigner := session.NewAssigner(sessions, cfg.Session)
	tracker := analytics.NewTracker()
	geoClient := geo.NewClient(cfg.Geo, m)

	recommender, err := generation.New(cfg.Generation, docs, m)
	if err != nil {
		slog.Error("failed to create recommendation client", "error", err)
		os.Exit(1)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		if idx.DocCount > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents indexed", idx.DocCount)}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "empty corpus"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.NewHandler(server.HandlerDeps{
		Engine:       engine,
		Cache:        queryCache,
		Sessions:     sessions,
		Assigner:     assigner,
		Tracker:      tracker,
		Recommender:  recommender,
		Collector:    collector,
		Docs:         docs,
		Metrics:      m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})
	sessionMW := server.NewSessionMiddleware(sessions, geoClient, collector)

	router := server.NewRouter(server.RouterDeps{
		Handler:  h,
		Sessions: sessionMW,
		Checker:  checker,
		Metrics:  m,
		Timeout:  cfg.Server.WriteTimeout,
	})

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
