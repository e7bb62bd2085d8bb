// Package session tracks ephemeral user sessions and clusters their queries
// into missions. Sessions are keyed by opaque generated ids and live only for
// the lifetime of the process.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/searchlab/prodsearch/pkg/config"
)

// Session holds per-session bookkeeping: activity timestamps, request and
// query counters, an ordered mission list, and the session's resolved
// location.
type Session struct {
	ID          string    `json:"id"`
	Start       time.Time `json:"start"`
	LastActive  time.Time `json:"last_active"`
	NumRequests int       `json:"num_requests"`
	NumQueries  int       `json:"num_queries"`
	Missions    []string  `json:"missions"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
}

// QueryEvent is one recorded query. Immutable once appended to the history;
// each event belongs to exactly one mission.
type QueryEvent struct {
	SessionID string    `json:"session_id"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	NumTerms  int       `json:"num_terms"`
	MissionID string    `json:"mission_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the in-memory session arena. Different sessions never contend;
// concurrent requests within one session are last-writer-wins by design.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	history  map[string][]QueryEvent
	cfg      config.SessionConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates an empty session store.
func NewStore(cfg config.SessionConfig) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		history:  make(map[string][]QueryEvent),
		cfg:      cfg,
		logger:   slog.Default().With("component", "session-store"),
		now:      time.Now,
	}
}

// Register creates a session under the given id if absent and returns it.
func (s *Store) Register(id, city, country string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	now := s.now()
	sess := &Session{
		ID:         id,
		Start:      now,
		LastActive: now,
		Missions:   make([]string, 0, 4),
		City:       city,
		Country:    country,
	}
	s.sessions[id] = sess
	s.logger.Debug("session registered", "session_id", id, "city", city, "country", country)
	return sess
}

// Touch marks activity on a session. A session idle longer than the
// configured timeout is logically expired: a fresh session id is generated
// and registered, and that id is returned with rotated=true. Unknown ids are
// returned unchanged.
func (s *Store) Touch(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return id, false
	}
	now := s.now()
	if now.Sub(sess.LastActive) > s.cfg.IdleTimeout {
		fresh := &Session{
			ID:         uuid.NewString(),
			Start:      now,
			LastActive: now,
			Missions:   make([]string, 0, 4),
			City:       sess.City,
			Country:    sess.Country,
		}
		s.sessions[fresh.ID] = fresh
		s.logger.Info("session rotated",
			"old_session_id", id,
			"new_session_id", fresh.ID,
			"idle", now.Sub(sess.LastActive),
		)
		return fresh.ID, true
	}
	sess.LastActive = now
	return id, false
}

// Get returns a copy of the session record.
func (s *Store) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	out := *sess
	out.Missions = append([]string(nil), sess.Missions...)
	return out, true
}

// Exists reports whether a session is registered.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// RecordRequest increments the session's request counter.
func (s *Store) RecordRequest(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.NumRequests++
	}
}

// History returns a copy of the session's query history in append order.
func (s *Store) History(id string) []QueryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]QueryEvent(nil), s.history[id]...)
}

// Sessions returns a copy of every live session record.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		cp := *sess
		cp.Missions = append([]string(nil), sess.Missions...)
		out = append(out, cp)
	}
	return out
}

// appendQuery records a query event and bumps the session's query counter.
// The mission id is added to the session's mission list with set semantics.
func (s *Store) appendQuery(ev QueryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[ev.SessionID] = append(s.history[ev.SessionID], ev)
	sess, ok := s.sessions[ev.SessionID]
	if !ok {
		return
	}
	sess.NumQueries++
	for _, m := range sess.Missions {
		if m == ev.MissionID {
			return
		}
	}
	sess.Missions = append(sess.Missions, ev.MissionID)
}
