package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/searchlab/prodsearch/pkg/kafka"
)

type AggregatedStats struct {
	TotalQueries      int64        `json:"total_queries"`
	TotalClicks       int64        `json:"total_clicks"`
	TotalDwellEvents  int64        `json:"total_dwell_events"`
	MissionsStarted   int64        `json:"missions_started"`
	MissionsContinued int64        `json:"missions_continued"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	AvgDwellSeconds   float64      `json:"avg_dwell_seconds"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	TopClickedDocs    []QueryCount `json:"top_clicked_docs"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu                sync.RWMutex
	totalQueries      atomic.Int64
	totalClicks       atomic.Int64
	totalDwell        atomic.Int64
	missionsStarted   atomic.Int64
	missionsContinued atomic.Int64
	zeroResults       atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	latencies         []int64
	dwellSum          float64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	clickCounts       map[string]int64
	startTime         time.Time

	logger *slog.Logger
}

// NewAggregator creates an empty Aggregator. It holds no transport of its
// own: the caller wires it to a consumer via HandleEvent, so exactly one
// aggregator instance sits behind both the consume loop and the HTTP API.
func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		clickCounts:       make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a kafka.MessageHandler that decodes each analytics
// event by its type tag and feeds it to the aggregator. Undecodable events
// are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var env envelope
		if err := json.Unmarshal(value, &env); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch env.Type {
		case EventQueryRecorded:
			if event, err := kafka.DecodeJSON[QueryEvent](value); err == nil {
				agg.recordQueryEvent(event)
			}
		case EventMissionAssigned:
			if event, err := kafka.DecodeJSON[MissionEvent](value); err == nil {
				agg.recordMissionEvent(event)
			}
		case EventDocClick:
			if event, err := kafka.DecodeJSON[ClickEvent](value); err == nil {
				agg.recordClickEvent(event)
			}
		case EventDwell:
			if event, err := kafka.DecodeJSON[DwellEvent](value); err == nil {
				agg.recordDwellEvent(event)
			}
		case EventResultsRecorded, EventHTTPRequest:
			// Carried for the snapshot store; nothing to aggregate yet.
		default:
			agg.logger.Warn("unknown analytics event type", "type", env.Type)
		}
		return nil
	}
}

func (a *Aggregator) recordQueryEvent(event QueryEvent) {
	a.totalQueries.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.TotalHits == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	if event.TotalHits == 0 {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordMissionEvent(event MissionEvent) {
	if event.Started {
		a.missionsStarted.Add(1)
	} else {
		a.missionsContinued.Add(1)
	}
}

func (a *Aggregator) recordClickEvent(event ClickEvent) {
	a.totalClicks.Add(1)
	a.mu.Lock()
	a.clickCounts[event.DocID]++
	a.mu.Unlock()
}

func (a *Aggregator) recordDwellEvent(event DwellEvent) {
	a.totalDwell.Add(1)
	a.mu.Lock()
	a.dwellSum += event.DwellSeconds
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:      a.totalQueries.Load(),
		TotalClicks:       a.totalClicks.Load(),
		TotalDwellEvents:  a.totalDwell.Load(),
		MissionsStarted:   a.missionsStarted.Load(),
		MissionsContinued: a.missionsContinued.Load(),
		ZeroResultCount:   a.zeroResults.Load(),
		CacheHits:         a.cacheHits.Load(),
		CacheMisses:       a.cacheMisses.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if stats.TotalDwellEvents > 0 {
		stats.AvgDwellSeconds = a.dwellSum / float64(stats.TotalDwellEvents)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	stats.TopClickedDocs = topN(a.clickCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
