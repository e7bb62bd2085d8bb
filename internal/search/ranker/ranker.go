// Package ranker scores candidate documents against query terms using a
// field-weighted BM25 variant.
package ranker

import (
	"sort"

	"github.com/searchlab/prodsearch/internal/search/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

// ScoredDoc pairs a document id with its accumulated relevance score.
type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Rank computes, for every candidate document, the sum over query terms of
// the BM25 term score multiplied by the field coefficient of the (term, doc)
// pair, then returns all candidates sorted by score descending with ties
// broken by doc id. Candidates that accumulate no score are retained: a term
// with IDF 0 (present in every document) legitimately scores 0 but the
// document still belongs to the result set.
func Rank(idx *index.Index, terms []string, candidates map[string]struct{}) []ScoredDoc {
	scores := make(map[string]float64, len(candidates))
	for docID := range candidates {
		scores[docID] = 0
	}

	for _, term := range terms {
		postings, ok := idx.Postings[term]
		if !ok {
			continue
		}
		idf := idx.IDF[term]
		for docID, posting := range postings {
			if _, ok := scores[docID]; !ok {
				continue
			}
			tf := float64(posting.Frequency())
			docLen := float64(idx.DocLengths[docID])
			denom := k1*((1-b)+b*(docLen/idx.AvgDocLength)) + tf
			score := idf * (k1 + 1) * tf / denom
			scores[docID] += score * idx.FieldCoefficient(term, docID)
		}
	}

	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{DocID: docID, Score: score})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	return result
}
