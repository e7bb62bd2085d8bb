package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/prodsearch/internal/corpus"
)

func newTestEngine() *Engine {
	return New(corpus.Corpus{
		"p1": {PID: "p1", Title: "Red Running Shoes", Brand: "Acme"},
		"p2": {PID: "p2", Title: "Blue Running Shoes"},
		"p3": {PID: "p3", Title: "Leather Wallet", Description: "handmade leather wallet"},
	})
}

func TestSearchEmptyQuery(t *testing.T) {
	e := newTestEngine()

	for _, q := range []string{"", "   ", "!!!", "the of a"} {
		res := e.Search(q)
		assert.Empty(t, res.Results, "query %q", q)
		assert.Zero(t, res.TotalHits, "query %q", q)
	}
}

func TestSearchNoMatches(t *testing.T) {
	res := newTestEngine().Search("quantum telescope")
	assert.Empty(t, res.Results)
	assert.Zero(t, res.TotalHits)
}

func TestSearchIntersection(t *testing.T) {
	res := newTestEngine().Search("red running shoes")

	require.NotEmpty(t, res.Results)
	// "red" only matches p1, so the intersection narrows to it.
	assert.Equal(t, "p1", res.Results[0].DocID)
}

// Terms absent from the index are skipped during intersection instead of
// emptying it; a fully disjoint term set falls back to the union.
func TestSearchUnionFallback(t *testing.T) {
	e := New(corpus.Corpus{
		"p1": {PID: "p1", Title: "Red Shoes"},
		"p2": {PID: "p2", Title: "Blue Wallet"},
	})

	// "red" hits p1, "wallet" hits p2, the intersection is empty: both come
	// back through the union.
	res := e.Search("red wallet")
	require.Len(t, res.Results, 2)
}

func TestSearchQueryStemMatchesIndexedForm(t *testing.T) {
	res := newTestEngine().Search("running shoe")
	require.NotEmpty(t, res.Results)
	ids := make([]string, 0, len(res.Results))
	for _, r := range res.Results {
		ids = append(ids, r.DocID)
	}
	assert.Contains(t, ids, "p1")
	assert.Contains(t, ids, "p2")
}

func TestSearchRedBlueScenario(t *testing.T) {
	e := New(corpus.Corpus{
		"P1": {PID: "P1", Title: "Red Running Shoes"},
		"P2": {PID: "P2", Title: "Blue Running Shoes"},
	})

	first := e.Search("running shoes")
	require.Len(t, first.Results, 2)
	assert.Equal(t, 2, first.TotalHits)

	// Deterministic order across repeated runs.
	for i := 0; i < 10; i++ {
		again := e.Search("running shoes")
		require.Equal(t, first.Results, again.Results)
	}
}

func TestSearchSingleDocumentCorpus(t *testing.T) {
	e := New(corpus.Corpus{
		"only": {PID: "only", Title: "Red Running Shoes"},
	})

	res := e.Search("running shoes")
	require.Len(t, res.Results, 1)
	assert.Equal(t, "only", res.Results[0].DocID)
	// N=1 makes every idf 0; the document is returned with score 0.
	assert.Zero(t, res.Results[0].Score)
}

func TestSearchConcurrentReads(t *testing.T) {
	e := newTestEngine()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				e.Search("running shoes")
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
