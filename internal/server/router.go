package server

import (
	"net/http"
	"time"

	"github.com/searchlab/prodsearch/internal/analytics"
	"github.com/searchlab/prodsearch/pkg/health"
	"github.com/searchlab/prodsearch/pkg/metrics"
	"github.com/searchlab/prodsearch/pkg/middleware"
)

// RouterDeps collects everything the HTTP router mounts.
type RouterDeps struct {
	Handler   *Handler
	Analytics *analytics.Handler
	Sessions  *SessionMiddleware
	Checker   *health.Checker
	Metrics   *metrics.Metrics
	Timeout   time.Duration
}

// NewRouter assembles the route table and middleware chain. Session
// resolution applies to the API surface only; health probes stay
// cookie-free.
func NewRouter(deps RouterDeps) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/search", deps.Handler.Search)
	api.HandleFunc("GET /api/v1/docs/{pid}", deps.Handler.DocDetails)
	api.HandleFunc("GET /api/v1/stats", deps.Handler.Stats)
	api.HandleFunc("GET /api/v1/cache/stats", deps.Handler.CacheStats)
	api.HandleFunc("POST /api/v1/cache/invalidate", deps.Handler.CacheInvalidate)
	if deps.Analytics != nil {
		api.HandleFunc("GET /api/v1/analytics", deps.Analytics.Stats)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", deps.Sessions.Wrap(api))
	mux.HandleFunc("GET /health/live", deps.Checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", deps.Checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(deps.Metrics)(chain)
	chain = middleware.Timeout(deps.Timeout)(chain)
	chain = middleware.RequestID(chain)
	return chain
}
