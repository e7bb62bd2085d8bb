package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClockedTracker() (*Tracker, *time.Time) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return now }
	return tr, &now
}

func TestRecordClickCounts(t *testing.T) {
	tr, _ := newClockedTracker()

	assert.Equal(t, int64(1), tr.RecordClick("s1", "p1"))
	assert.Equal(t, int64(2), tr.RecordClick("s2", "p1"))
	assert.Equal(t, int64(1), tr.RecordClick("s1", "p2"))
	assert.Equal(t, int64(2), tr.Clicks("p1"))
}

func TestResolveDwellMeasuresSinceClick(t *testing.T) {
	tr, now := newClockedTracker()

	tr.RecordClick("s1", "p1")
	*now = now.Add(42 * time.Second)

	ev, ok := tr.ResolveDwell("s1")
	require.True(t, ok)
	assert.Equal(t, "p1", ev.DocID)
	assert.Equal(t, "s1", ev.SessionID)
	assert.InDelta(t, 42.0, ev.DwellSeconds, 1e-9)

	// The slot is consumed; a second navigation resolves nothing.
	_, ok = tr.ResolveDwell("s1")
	assert.False(t, ok)
}

func TestResolveDwellWithoutClick(t *testing.T) {
	tr, _ := newClockedTracker()
	_, ok := tr.ResolveDwell("s1")
	assert.False(t, ok)
}

// A second click before the first dwell resolves overwrites the slot:
// last-writer-wins within a session.
func TestLastClickOverwritten(t *testing.T) {
	tr, now := newClockedTracker()

	tr.RecordClick("s1", "p1")
	*now = now.Add(10 * time.Second)
	tr.RecordClick("s1", "p2")
	*now = now.Add(5 * time.Second)

	ev, ok := tr.ResolveDwell("s1")
	require.True(t, ok)
	assert.Equal(t, "p2", ev.DocID)
	assert.InDelta(t, 5.0, ev.DwellSeconds, 1e-9)
}

func TestDocumentStatsAggregation(t *testing.T) {
	tr, now := newClockedTracker()

	tr.RecordResults("s1", "red shoes", []RankedDoc{{DocID: "p1", Rank: 1}, {DocID: "p2", Rank: 2}})
	tr.RecordResults("s1", "red shoes", []RankedDoc{{DocID: "p1", Rank: 1}})
	tr.RecordResults("s2", "blue shoes", []RankedDoc{{DocID: "p1", Rank: 1}})

	tr.RecordClick("s1", "p1")
	*now = now.Add(10 * time.Second)
	tr.ResolveDwell("s1")
	tr.RecordClick("s1", "p1")
	*now = now.Add(30 * time.Second)
	tr.ResolveDwell("s1")
	tr.RecordClick("s2", "p2")

	stats := tr.DocumentStats()
	require.Len(t, stats, 2)

	// Sorted by clicks descending.
	assert.Equal(t, "p1", stats[0].DocID)
	assert.Equal(t, int64(2), stats[0].Clicks)
	// Related queries are deduplicated.
	assert.Equal(t, []string{"red shoes", "blue shoes"}, stats[0].Queries)
	assert.InDelta(t, 20.0, stats[0].AvgDwellSecs, 1e-9)

	assert.Equal(t, "p2", stats[1].DocID)
	assert.Equal(t, int64(1), stats[1].Clicks)
	assert.Zero(t, stats[1].AvgDwellSecs)
}

func TestQueryStats(t *testing.T) {
	tr, _ := newClockedTracker()

	tr.RecordQuery("red shoes")
	tr.RecordQuery("red shoes")
	tr.RecordQuery("wallet")
	tr.RecordResults("s1", "red shoes", []RankedDoc{{DocID: "p1", Rank: 1}, {DocID: "p2", Rank: 2}})

	qs := tr.QueryStats()
	assert.Equal(t, 3, qs.TotalQueries)
	assert.Equal(t, []string{"red shoes", "red shoes", "wallet"}, qs.Queries)
	assert.Equal(t, []string{"p1", "p2"}, qs.QueryResults["red shoes"])
}
