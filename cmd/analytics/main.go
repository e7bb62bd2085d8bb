// Command analytics starts the standalone analytics aggregation service.
//
// It consumes search-analytics events from Kafka, aggregates them in memory
// (query counts, latency percentiles, cache hit rate, missions, clicks and
// dwell time), snapshots the aggregates to PostgreSQL periodically, and
// exposes an HTTP API at GET /api/v1/analytics for dashboards, with
// snapshot history at GET /api/v1/analytics/history when PostgreSQL is
// configured.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/searchlab/prodsearch/internal/analytics"
	"github.com/searchlab/prodsearch/internal/analytics/store"
	"github.com/searchlab/prodsearch/pkg/config"
	"github.com/searchlab/prodsearch/pkg/health"
	"github.com/searchlab/prodsearch/pkg/kafka"
	"github.com/searchlab/prodsearch/pkg/logger"
	"github.com/searchlab/prodsearch/pkg/middleware"
	"github.com/searchlab/prodsearch/pkg/postgres"
)

// main boots the analytics service: a Kafka consumer feeding the in-memory
// aggregator, an optional PostgreSQL snapshot store, a health checker, and
// the HTTP API. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup("analytics", cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One aggregator, fed by one Kafka consumer. The consume loop and the
	// HTTP API below must see the same instance.
	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))

	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	var snapshotStore *store.Store
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshot persistence disabled", "error", err)
	} else {
		defer db.Close()
		snapshotStore = store.NewStore(db)
		if err := snapshotStore.EnsureSchema(ctx); err != nil {
			slog.Warn("snapshot schema unavailable, persistence disabled", "error", err)
			snapshotStore = nil
		}
	}
	if snapshotStore != nil {
		if snap, err := snapshotStore.LatestSnapshot(ctx); err != nil {
			slog.Warn("could not read latest snapshot", "error", err)
		} else if snap != nil {
			slog.Info("resuming after previous snapshot",
				"captured_at", snap.CapturedAt,
				"total_queries", snap.Stats.TotalQueries,
				"total_clicks", snap.Stats.TotalClicks,
			)
		}
		snapshotStore.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
	}

	// HTTP API.
	analyticsHandler := analytics.NewHandler(aggregator)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if db == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	if snapshotStore != nil {
		histLogger := slog.Default().With("component", "analytics-history")
		mux.HandleFunc("GET /api/v1/analytics/history", func(w http.ResponseWriter, r *http.Request) {
			limit := 24
			if v := r.URL.Query().Get("limit"); v != "" {
				if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
					limit = n
				}
			}
			snapshots, err := snapshotStore.ListSnapshots(r.Context(), limit)
			if err != nil {
				histLogger.Error("listing snapshots failed", "error", err)
				analytics.WriteJSON(w, http.StatusInternalServerError,
					map[string]string{"error": "snapshot history unavailable"}, histLogger)
				return
			}
			analytics.WriteJSON(w, http.StatusOK, map[string]any{
				"count":     len(snapshots),
				"snapshots": snapshots,
			}, histLogger)
		})
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
