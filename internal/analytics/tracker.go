// Package analytics records per-session behavioral facts (queries, results,
// clicks, dwell time) in memory, ships them to Kafka for the downstream
// aggregation service, and aggregates them for the stats endpoints. All fact
// tables are process-lifetime only.
package analytics

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// lastClick marks the most recent document click of a session; the dwell
// timer runs until the session's next navigation event.
type lastClick struct {
	docID     string
	clickedAt time.Time
}

type resultFact struct {
	sessionID string
	query     string
	docID     string
	rank      int
	timestamp time.Time
}

type dwellFact struct {
	sessionID string
	docID     string
	seconds   float64
	timestamp time.Time
}

// DocumentStats summarises clicks, related queries, and dwell behavior for
// one document.
type DocumentStats struct {
	DocID        string    `json:"doc_id"`
	Clicks       int64     `json:"clicks"`
	Queries      []string  `json:"related_queries"`
	DwellTimes   []float64 `json:"dwell_times"`
	AvgDwellSecs float64   `json:"avg_dwell_seconds"`
}

// QueryStats summarises the recorded queries and their returned documents.
type QueryStats struct {
	TotalQueries int                 `json:"total_queries"`
	Queries      []string            `json:"queries"`
	QueryResults map[string][]string `json:"query_results"`
}

// Tracker is the in-memory fact store. Within a session the last-click slot
// is last-writer-wins under concurrent requests; this is tolerated, not
// serialised.
type Tracker struct {
	mu        sync.Mutex
	clicks    map[string]int64
	results   []resultFact
	dwells    []dwellFact
	queries   []string
	lastClick map[string]lastClick
	logger    *slog.Logger
	now       func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		clicks:    make(map[string]int64),
		lastClick: make(map[string]lastClick),
		logger:    slog.Default().With("component", "analytics-tracker"),
		now:       time.Now,
	}
}

// RecordQuery stores the raw query text for stats.
func (t *Tracker) RecordQuery(query string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries = append(t.queries, query)
}

// RecordResults stores the ordered (doc, rank) list returned for a query.
func (t *Tracker) RecordResults(sessionID, query string, ranked []RankedDoc) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range ranked {
		t.results = append(t.results, resultFact{
			sessionID: sessionID,
			query:     query,
			docID:     r.DocID,
			rank:      r.Rank,
			timestamp: now,
		})
	}
}

// RecordClick bumps the document's click counter and starts the session's
// dwell timer. It returns the updated click count.
func (t *Tracker) RecordClick(sessionID, docID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clicks[docID]++
	t.lastClick[sessionID] = lastClick{docID: docID, clickedAt: t.now()}
	return t.clicks[docID]
}

// ResolveDwell computes the dwell time since the session's last document
// click, records it, and clears the slot. It returns false when no click is
// pending.
func (t *Tracker) ResolveDwell(sessionID string) (DwellEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lc, ok := t.lastClick[sessionID]
	if !ok {
		return DwellEvent{}, false
	}
	delete(t.lastClick, sessionID)
	now := t.now()
	fact := dwellFact{
		sessionID: sessionID,
		docID:     lc.docID,
		seconds:   now.Sub(lc.clickedAt).Seconds(),
		timestamp: now,
	}
	t.dwells = append(t.dwells, fact)
	return DwellEvent{
		Type:         EventDwell,
		SessionID:    sessionID,
		DocID:        fact.docID,
		DwellSeconds: fact.seconds,
		Timestamp:    now,
	}, true
}

// Clicks returns the click count for one document.
func (t *Tracker) Clicks(docID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clicks[docID]
}

// DocumentStats returns per-document stats sorted by clicks descending.
func (t *Tracker) DocumentStats() []DocumentStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := make([]DocumentStats, 0, len(t.clicks))
	for docID, clicks := range t.clicks {
		ds := DocumentStats{DocID: docID, Clicks: clicks}
		seen := make(map[string]struct{})
		for _, r := range t.results {
			if r.docID != docID {
				continue
			}
			if _, ok := seen[r.query]; ok {
				continue
			}
			seen[r.query] = struct{}{}
			ds.Queries = append(ds.Queries, r.query)
		}
		var sum float64
		for _, d := range t.dwells {
			if d.docID != docID {
				continue
			}
			ds.DwellTimes = append(ds.DwellTimes, d.seconds)
			sum += d.seconds
		}
		if len(ds.DwellTimes) > 0 {
			ds.AvgDwellSecs = sum / float64(len(ds.DwellTimes))
		}
		stats = append(stats, ds)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Clicks != stats[j].Clicks {
			return stats[i].Clicks > stats[j].Clicks
		}
		return stats[i].DocID < stats[j].DocID
	})
	return stats
}

// QueryStats returns the recorded queries and, per query, the doc ids that
// were returned for it.
func (t *Tracker) QueryStats() QueryStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	qs := QueryStats{
		TotalQueries: len(t.queries),
		Queries:      append([]string(nil), t.queries...),
		QueryResults: make(map[string][]string),
	}
	for _, r := range t.results {
		qs.QueryResults[r.query] = append(qs.QueryResults[r.query], r.docID)
	}
	return qs
}
