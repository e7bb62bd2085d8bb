package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/searchlab/prodsearch/internal/analytics"
	"github.com/searchlab/prodsearch/internal/corpus"
	"github.com/searchlab/prodsearch/internal/generation"
	"github.com/searchlab/prodsearch/internal/search"
	"github.com/searchlab/prodsearch/internal/search/cache"
	"github.com/searchlab/prodsearch/internal/session"
	pkgerrors "github.com/searchlab/prodsearch/pkg/errors"
	"github.com/searchlab/prodsearch/pkg/logger"
	"github.com/searchlab/prodsearch/pkg/metrics"
	"github.com/searchlab/prodsearch/pkg/middleware"
	"github.com/searchlab/prodsearch/pkg/tracing"
)

// Handler serves the search API.
type Handler struct {
	engine       *search.Engine
	cache        *cache.QueryCache
	sessions     *session.Store
	assigner     *session.Assigner
	tracker      *analytics.Tracker
	recommender  *generation.Recommender
	collector    *analytics.Collector
	docs         corpus.Corpus
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// HandlerDeps bundles the collaborators a Handler needs. Cache, recommender,
// and collector may be nil; the handler degrades gracefully without them.
type HandlerDeps struct {
	Engine       *search.Engine
	Cache        *cache.QueryCache
	Sessions     *session.Store
	Assigner     *session.Assigner
	Tracker      *analytics.Tracker
	Recommender  *generation.Recommender
	Collector    *analytics.Collector
	Docs         corpus.Corpus
	Metrics      *metrics.Metrics
	DefaultLimit int
	MaxResults   int
}

// NewHandler builds the API handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		engine:       deps.Engine,
		cache:        deps.Cache,
		sessions:     deps.Sessions,
		assigner:     deps.Assigner,
		tracker:      deps.Tracker,
		recommender:  deps.Recommender,
		collector:    deps.Collector,
		docs:         deps.Docs,
		metrics:      deps.Metrics,
		defaultLimit: deps.DefaultLimit,
		maxResults:   deps.MaxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

type resultItem struct {
	PID         string  `json:"pid"`
	Title       string  `json:"title"`
	Brand       string  `json:"brand,omitempty"`
	Category    string  `json:"category,omitempty"`
	SubCategory string  `json:"sub_category,omitempty"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
	URL         string  `json:"url"`
}

type searchResponse struct {
	Query          string       `json:"query"`
	MissionID      string       `json:"mission_id,omitempty"`
	TotalHits      int          `json:"total_hits"`
	Returned       int          `json:"returned"`
	CacheHit       bool         `json:"cache_hit"`
	Results        []resultItem `json:"results"`
	Recommendation string       `json:"recommendation,omitempty"`
}

// Search ranks the corpus for the q parameter and records the query against
// the caller's session. An empty query is not an error: it yields an empty
// result list, but still resolves pending dwell time and joins a mission.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	sessionID := SessionID(ctx)

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			appErr := pkgerrors.New(pkgerrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
			h.writeError(w, pkgerrors.HTTPStatusCode(appErr), appErr.Message)
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	h.resolveDwell(sessionID)

	missionID, started, err := h.assigner.Assign(sessionID, query)
	if err != nil {
		// The session middleware registers every session, so this only
		// happens when the middleware was bypassed.
		log.Warn("mission assignment failed", "session_id", sessionID, "error", err)
	} else {
		outcome := "continued"
		if started {
			outcome = "started"
		}
		h.metrics.MissionsTotal.WithLabelValues(outcome).Inc()
		if h.collector != nil {
			h.collector.Track(analytics.MissionEvent{
				Type:      analytics.EventMissionAssigned,
				SessionID: sessionID,
				MissionID: missionID,
				Query:     query,
				Started:   started,
				Timestamp: time.Now().UTC(),
			})
		}
	}

	ctx, span := tracing.Start(ctx, "search", middleware.GetRequestID(ctx))
	span.SetAttr("query", query)

	var result *search.Result
	cacheHit := false
	rankCtx, rankSpan := tracing.Nested(ctx, "rank")
	if h.cache != nil && query != "" {
		result, cacheHit = h.cache.GetOrCompute(rankCtx, query, func() *search.Result {
			return h.engine.Search(query)
		})
	} else {
		result = h.engine.Search(query)
	}
	rankSpan.SetAttr("cache_hit", cacheHit)
	rankSpan.End()

	latency := time.Since(start)
	h.observeSearch(result, cacheHit, latency)

	ranked := make([]analytics.RankedDoc, len(result.Results))
	for i, sd := range result.Results {
		ranked[i] = analytics.RankedDoc{DocID: sd.DocID, Rank: i + 1}
	}
	h.tracker.RecordQuery(query)
	h.tracker.RecordResults(sessionID, query, ranked)

	if h.collector != nil {
		now := time.Now().UTC()
		h.collector.Track(analytics.QueryEvent{
			Type:      analytics.EventQueryRecorded,
			SessionID: sessionID,
			Query:     query,
			Terms:     result.Terms,
			MissionID: missionID,
			TotalHits: result.TotalHits,
			Returned:  min(limit, len(result.Results)),
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: now,
			RequestID: middleware.GetRequestID(ctx),
		})
		h.collector.Track(analytics.ResultsEvent{
			Type:      analytics.EventResultsRecorded,
			SessionID: sessionID,
			Query:     query,
			Results:   ranked,
			Timestamp: now,
		})
	}

	recommendation := ""
	if h.recommender != nil {
		genCtx, genSpan := tracing.Nested(ctx, "recommend")
		recommendation = h.recommender.Recommend(genCtx, query, result.Results)
		genSpan.End()
	}

	page := result.Results
	if len(page) > limit {
		page = page[:limit]
	}
	items := make([]resultItem, len(page))
	for i, sd := range page {
		doc := h.docs[sd.DocID]
		items[i] = resultItem{
			PID:         sd.DocID,
			Title:       doc.Title,
			Brand:       doc.Brand,
			Category:    doc.Category,
			SubCategory: doc.SubCategory,
			Score:       sd.Score,
			Rank:        i + 1,
			URL:         fmt.Sprintf("/api/v1/docs/%s", sd.DocID),
		}
	}

	span.Finish(log)

	log.Info("search completed",
		"query", query,
		"session_id", sessionID,
		"mission_id", missionID,
		"total_hits", result.TotalHits,
		"returned", len(items),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)

	h.writeJSON(w, http.StatusOK, searchResponse{
		Query:          query,
		MissionID:      missionID,
		TotalHits:      result.TotalHits,
		Returned:       len(items),
		CacheHit:       cacheHit,
		Results:        items,
		Recommendation: recommendation,
	})
}

// DocDetails serves one document by pid, counting the click and starting the
// session's dwell timer.
func (h *Handler) DocDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := SessionID(ctx)

	h.resolveDwell(sessionID)

	pid := r.PathValue("pid")
	doc, ok := h.docs[pid]
	if !ok {
		appErr := pkgerrors.Newf(pkgerrors.ErrDocumentNotFound, http.StatusNotFound, "document %s not found", pid)
		h.writeError(w, pkgerrors.HTTPStatusCode(appErr), appErr.Error())
		return
	}

	clicks := h.tracker.RecordClick(sessionID, pid)
	h.metrics.DocClicksTotal.Inc()
	if h.collector != nil {
		h.collector.Track(analytics.ClickEvent{
			Type:      analytics.EventDocClick,
			SessionID: sessionID,
			DocID:     pid,
			Title:     doc.Title,
			Timestamp: time.Now().UTC(),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"clicks":   clicks,
	})
}

// Stats exposes the in-memory fact tables: per-document and per-query stats
// plus the live sessions.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionID(r.Context())
	h.resolveDwell(sessionID)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"document_stats": h.tracker.DocumentStats(),
		"query_stats":    h.tracker.QueryStats(),
		"sessions":       h.sessions.Sessions(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// resolveDwell closes the session's pending dwell interval, if any, on a
// navigation event.
func (h *Handler) resolveDwell(sessionID string) {
	ev, ok := h.tracker.ResolveDwell(sessionID)
	if !ok {
		return
	}
	h.metrics.DwellSeconds.Observe(ev.DwellSeconds)
	if h.collector != nil {
		h.collector.Track(ev)
	}
}

func (h *Handler) observeSearch(result *search.Result, cacheHit bool, latency time.Duration) {
	resultType := "hit"
	switch {
	case len(result.Terms) == 0:
		resultType = "empty_query"
	case result.TotalHits == 0:
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()

	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	h.metrics.SearchResultsCount.Observe(float64(result.TotalHits))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
