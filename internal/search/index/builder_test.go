package index

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/prodsearch/internal/corpus"
)

func testCorpus() corpus.Corpus {
	return corpus.Corpus{
		"p1": {
			PID:      "p1",
			Title:    "Red Running Shoes",
			Brand:    "Acme",
			Category: "Footwear",
			Details:  map[string]string{"color": "red"},
		},
		"p2": {
			PID:         "p2",
			Title:       "Blue Running Shoes",
			Description: "lightweight mesh running shoes for daily training",
		},
		"p3": {
			PID:   "p3",
			Title: "Leather Wallet",
		},
	}
}

func TestBuildEmptyCorpus(t *testing.T) {
	idx := Build(corpus.Corpus{})

	assert.Empty(t, idx.Postings)
	assert.Empty(t, idx.IDF)
	assert.Empty(t, idx.DocLengths)
	assert.Zero(t, idx.AvgDocLength)
	assert.Zero(t, idx.DocCount)
}

func TestBuildOmitsZeroTokenDocuments(t *testing.T) {
	c := corpus.Corpus{
		"p1": {PID: "p1", Title: "Running Shoes"},
		// Only stop-words and single letters: tokenizes to nothing.
		"p2": {PID: "p2", Title: "a an the of"},
	}
	idx := Build(c)

	assert.Equal(t, 1, idx.DocCount)
	assert.Contains(t, idx.DocLengths, "p1")
	assert.NotContains(t, idx.DocLengths, "p2")
	for term, postings := range idx.Postings {
		assert.NotContains(t, postings, "p2", "term %q must not reference p2", term)
	}
}

func TestBuildIdempotent(t *testing.T) {
	c := testCorpus()
	first := Build(c)
	second := Build(c)

	assert.Equal(t, first.IDF, second.IDF)
	assert.Equal(t, first.DocLengths, second.DocLengths)
	assert.Equal(t, first.AvgDocLength, second.AvgDocLength)
	assert.Equal(t, first.DocCount, second.DocCount)
}

func TestBuildPositionsSharedAcrossFields(t *testing.T) {
	c := corpus.Corpus{
		"p1": {PID: "p1", Title: "Red Shoes", Brand: "Acme"},
	}
	idx := Build(c)

	// Canonical order is title, description, brand, ...; description is empty
	// so the brand token continues the title's counter.
	require.Contains(t, idx.Postings, "red")
	require.Contains(t, idx.Postings, "acme")
	assert.Equal(t, []int{0}, idx.Postings["red"]["p1"].Positions)
	assert.Equal(t, []int{1}, idx.Postings["sho"]["p1"].Positions)
	assert.Equal(t, []int{2}, idx.Postings["acme"]["p1"].Positions)
	assert.Equal(t, 3, idx.DocLengths["p1"])
}

func TestBuildIDF(t *testing.T) {
	idx := Build(testCorpus())

	// "runn" appears in p1 and p2, "wallet" only in p3.
	assert.InDelta(t, math.Log(3.0/2.0), idx.IDF["runn"], 1e-9)
	assert.InDelta(t, math.Log(3.0/1.0), idx.IDF["wallet"], 1e-9)
}

func TestBuildSingleDocumentIDFZero(t *testing.T) {
	idx := Build(corpus.Corpus{
		"p1": {PID: "p1", Title: "Red Running Shoes"},
	})

	for term, idf := range idx.IDF {
		assert.Zero(t, idf, "idf of %q in a single-doc corpus", term)
	}
}

func TestFieldCoefficientSumsMembership(t *testing.T) {
	c := corpus.Corpus{
		"p1": {
			PID:     "p1",
			Title:   "Red Shoes",
			Details: map[string]string{"color": "red"},
		},
	}
	idx := Build(c)

	// "red" occurs in title (0.9) and details (0.25).
	assert.InDelta(t, 1.15, idx.FieldCoefficient("red", "p1"), 1e-9)
	// "sho" occurs in title only.
	assert.InDelta(t, 0.9, idx.FieldCoefficient("sho", "p1"), 1e-9)
	assert.Zero(t, idx.FieldCoefficient("red", "absent"))
	assert.Zero(t, idx.FieldCoefficient("absent", "p1"))
}

func TestPostingFrequency(t *testing.T) {
	idx := Build(corpus.Corpus{
		"p1": {PID: "p1", Title: "red red red socks"},
	})
	require.Contains(t, idx.Postings, "red")
	assert.Equal(t, 3, idx.Postings["red"]["p1"].Frequency())
}
