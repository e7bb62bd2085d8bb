package session

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/searchlab/prodsearch/internal/search/tokenizer"
	"github.com/searchlab/prodsearch/pkg/config"
	pkgerrors "github.com/searchlab/prodsearch/pkg/errors"
)

// Assigner decides whether a new query continues the session's current
// mission or starts a new one, using cosine similarity over term-frequency
// vectors of recent queries. Window and threshold come from configuration;
// the defaults (2h, 0.35) are inherited heuristics, deliberately preserved
// rather than re-tuned.
type Assigner struct {
	store     *Store
	window    time.Duration
	threshold float64
	logger    *slog.Logger
}

// NewAssigner creates an Assigner over the given store.
func NewAssigner(store *Store, cfg config.SessionConfig) *Assigner {
	return &Assigner{
		store:     store,
		window:    cfg.MissionWindow,
		threshold: cfg.MissionThreshold,
		logger:    slog.Default().With("component", "mission-assigner"),
	}
}

// Assign resolves the mission for a new query in the given session and, as a
// side effect, appends the query event to the session history. It returns the
// mission id and whether a new mission was started. Assigning to an unknown
// session fails with ErrSessionNotFound; sessions are never created
// implicitly here.
func (a *Assigner) Assign(sessionID, query string) (string, bool, error) {
	if !a.store.Exists(sessionID) {
		return "", false, fmt.Errorf("assigning mission for session %s: %w", sessionID, pkgerrors.ErrSessionNotFound)
	}

	now := a.store.now()
	terms := tokenizer.Terms(query)
	vec := termVector(terms)

	var bestSim float64
	var bestMission string
	for _, prior := range a.store.History(sessionID) {
		if prior.MissionID == "" {
			continue
		}
		if now.Sub(prior.Timestamp) > a.window {
			continue
		}
		sim := cosine(vec, termVector(prior.Terms))
		if sim > bestSim {
			bestSim = sim
			bestMission = prior.MissionID
		}
	}

	missionID := bestMission
	started := false
	if bestMission == "" || bestSim < a.threshold {
		missionID = uuid.NewString()
		started = true
	}

	a.store.appendQuery(QueryEvent{
		SessionID: sessionID,
		Query:     query,
		Terms:     terms,
		NumTerms:  len(terms),
		MissionID: missionID,
		Timestamp: now,
	})

	a.logger.Debug("mission assigned",
		"session_id", sessionID,
		"mission_id", missionID,
		"started", started,
		"best_similarity", bestSim,
	)
	return missionID, started, nil
}

// termVector builds a term-frequency vector from a token list.
func termVector(terms []string) map[string]int {
	vec := make(map[string]int, len(terms))
	for _, t := range terms {
		vec[t]++
	}
	return vec
}

// cosine computes the cosine similarity of two term-frequency vectors. It is
// 0 when either vector is empty or has zero norm.
func cosine(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for term, fa := range a {
		normA += float64(fa * fa)
		if fb, ok := b[term]; ok {
			dot += float64(fa * fb)
		}
	}
	for _, fb := range b {
		normB += float64(fb * fb)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
