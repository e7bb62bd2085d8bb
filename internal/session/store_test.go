package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/prodsearch/pkg/config"
)

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		IdleTimeout:      30 * time.Minute,
		MissionWindow:    2 * time.Hour,
		MissionThreshold: 0.35,
	}
}

// newClockedStore returns a store with a controllable clock.
func newClockedStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s := NewStore(testSessionConfig())
	s.now = func() time.Time { return now }
	return s, &now
}

func TestRegisterIsIdempotent(t *testing.T) {
	s, _ := newClockedStore(t)

	first := s.Register("s1", "Barcelona", "Spain")
	second := s.Register("s1", "Madrid", "Spain")

	assert.Same(t, first, second)
	got, ok := s.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "Barcelona", got.City)
}

func TestTouchKeepsActiveSession(t *testing.T) {
	s, now := newClockedStore(t)
	s.Register("s1", "", "")

	*now = now.Add(10 * time.Minute)
	id, rotated := s.Touch("s1")

	assert.False(t, rotated)
	assert.Equal(t, "s1", id)
	got, _ := s.Get("s1")
	assert.Equal(t, *now, got.LastActive)
}

func TestTouchRotatesIdleSession(t *testing.T) {
	s, now := newClockedStore(t)
	s.Register("s1", "Barcelona", "Spain")

	*now = now.Add(31 * time.Minute)
	id, rotated := s.Touch("s1")

	assert.True(t, rotated)
	assert.NotEqual(t, "s1", id)
	fresh, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, *now, fresh.Start)
	// Location carries over to the replacement session.
	assert.Equal(t, "Barcelona", fresh.City)
}

func TestTouchUnknownSession(t *testing.T) {
	s, _ := newClockedStore(t)
	id, rotated := s.Touch("ghost")
	assert.Equal(t, "ghost", id)
	assert.False(t, rotated)
}

func TestRecordRequestCounts(t *testing.T) {
	s, _ := newClockedStore(t)
	s.Register("s1", "", "")

	s.RecordRequest("s1")
	s.RecordRequest("s1")
	s.RecordRequest("ghost")

	got, _ := s.Get("s1")
	assert.Equal(t, 2, got.NumRequests)
}

func TestMissionListSetSemantics(t *testing.T) {
	s, _ := newClockedStore(t)
	s.Register("s1", "", "")

	for i := 0; i < 3; i++ {
		s.appendQuery(QueryEvent{SessionID: "s1", Query: "q", MissionID: "m1"})
	}
	s.appendQuery(QueryEvent{SessionID: "s1", Query: "q", MissionID: "m2"})

	got, _ := s.Get("s1")
	assert.Equal(t, []string{"m1", "m2"}, got.Missions)
	assert.Equal(t, 4, got.NumQueries)
	assert.Len(t, s.History("s1"), 4)
}

func TestHistoryReturnsCopy(t *testing.T) {
	s, _ := newClockedStore(t)
	s.Register("s1", "", "")
	s.appendQuery(QueryEvent{SessionID: "s1", Query: "red shoes", MissionID: "m1"})

	h := s.History("s1")
	require.Len(t, h, 1)
	h[0].Query = "mutated"

	assert.Equal(t, "red shoes", s.History("s1")[0].Query)
}
