// Package search wires the tokenizer, index, and ranker into the query-time
// engine: tokenize the query, select candidate documents, rank them.
package search

import (
	"log/slog"

	"github.com/searchlab/prodsearch/internal/corpus"
	"github.com/searchlab/prodsearch/internal/search/index"
	"github.com/searchlab/prodsearch/internal/search/ranker"
	"github.com/searchlab/prodsearch/internal/search/tokenizer"
)

// Result is the outcome of one query: the full ordered list of scored
// documents. Attaching presentation URLs and paginating is the caller's job.
type Result struct {
	Query     string             `json:"query"`
	Terms     []string           `json:"terms"`
	TotalHits int                `json:"total_hits"`
	Results   []ranker.ScoredDoc `json:"results"`
}

// Engine serves queries against a prebuilt immutable index. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	idx    *index.Index
	logger *slog.Logger
}

// New builds the index for the given corpus and returns an Engine over it.
// Building happens synchronously, once, before any query is served.
func New(c corpus.Corpus) *Engine {
	return NewWithIndex(index.Build(c))
}

// NewWithIndex returns an Engine over an already-built index.
func NewWithIndex(idx *index.Index) *Engine {
	return &Engine{
		idx:    idx,
		logger: slog.Default().With("component", "search-engine"),
	}
}

// Index exposes the underlying immutable index snapshot.
func (e *Engine) Index() *index.Index {
	return e.idx
}

// Search tokenizes the query with the same tokenizer used at index time,
// selects candidates (intersection of per-term document sets, falling back to
// the union when the intersection is empty), and ranks them. An empty query,
// an empty index, or an empty candidate set all yield an empty result, never
// an error.
func (e *Engine) Search(query string) *Result {
	terms := tokenizer.Terms(query)
	res := &Result{
		Query:   query,
		Terms:   terms,
		Results: []ranker.ScoredDoc{},
	}
	if len(terms) == 0 {
		return res
	}

	candidates := e.intersectCandidates(terms)
	if len(candidates) == 0 {
		candidates = e.unionCandidates(terms)
	}
	if len(candidates) == 0 {
		return res
	}

	res.Results = ranker.Rank(e.idx, terms, candidates)
	res.TotalHits = len(res.Results)

	e.logger.Debug("query executed",
		"query", query,
		"terms", terms,
		"candidates", len(candidates),
		"results", len(res.Results),
	)
	return res
}

// intersectCandidates intersects the document sets of the query terms that
// are present in the index. Terms without postings are skipped rather than
// emptying the intersection outright.
func (e *Engine) intersectCandidates(terms []string) map[string]struct{} {
	var candidates map[string]struct{}
	for _, term := range terms {
		postings, ok := e.idx.Postings[term]
		if !ok {
			continue
		}
		if candidates == nil {
			candidates = make(map[string]struct{}, len(postings))
			for docID := range postings {
				candidates[docID] = struct{}{}
			}
			continue
		}
		for docID := range candidates {
			if _, ok := postings[docID]; !ok {
				delete(candidates, docID)
			}
		}
	}
	return candidates
}

// unionCandidates collects every document containing any query term.
func (e *Engine) unionCandidates(terms []string) map[string]struct{} {
	candidates := make(map[string]struct{})
	for _, term := range terms {
		for docID := range e.idx.Postings[term] {
			candidates[docID] = struct{}{}
		}
	}
	return candidates
}
