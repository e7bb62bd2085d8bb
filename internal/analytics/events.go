package analytics

import "time"

type EventType string

const (
	EventQueryRecorded   EventType = "query_recorded"
	EventResultsRecorded EventType = "results_recorded"
	EventMissionAssigned EventType = "mission_assigned"
	EventDocClick        EventType = "doc_click"
	EventDwell           EventType = "dwell"
	EventHTTPRequest     EventType = "http_request"
)

// envelope is used to sniff the event type before full decoding.
type envelope struct {
	Type EventType `json:"type"`
}

// QueryEvent is emitted once per recorded search query.
type QueryEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	MissionID string    `json:"mission_id"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// RankedDoc is one entry of a recorded result list.
type RankedDoc struct {
	DocID string `json:"doc_id"`
	Rank  int    `json:"rank"`
}

// ResultsEvent carries the ordered result list returned for one query.
type ResultsEvent struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"session_id"`
	Query     string      `json:"query"`
	Results   []RankedDoc `json:"results"`
	Timestamp time.Time   `json:"timestamp"`
}

// MissionEvent is emitted when a query is assigned to a mission.
type MissionEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	MissionID string    `json:"mission_id"`
	Query     string    `json:"query"`
	Started   bool      `json:"started"`
	Timestamp time.Time `json:"timestamp"`
}

// ClickEvent is emitted when a document detail page is opened.
type ClickEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// DwellEvent is emitted when dwell time for the last clicked document is
// resolved by the next navigation event in the same session.
type DwellEvent struct {
	Type         EventType `json:"type"`
	SessionID    string    `json:"session_id"`
	DocID        string    `json:"doc_id"`
	DwellSeconds float64   `json:"dwell_seconds"`
	Timestamp    time.Time `json:"timestamp"`
}

// RequestEvent is emitted once per HTTP request with session and location
// context.
type RequestEvent struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Path      string    `json:"path"`
	Method    string    `json:"method"`
	IP        string    `json:"ip"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}
