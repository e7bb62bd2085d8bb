// Package index builds the in-memory search index for a product corpus. The
// builder runs once at startup and produces an immutable Index snapshot that
// is safe for concurrent readers; there are no incremental updates, and a
// changed corpus requires a full rebuild.
package index

import (
	"log/slog"
	"math"

	"github.com/searchlab/prodsearch/internal/corpus"
	"github.com/searchlab/prodsearch/internal/search/tokenizer"
)

// Index is the frozen output of a corpus build: positional postings, per-term
// field membership, per-term IDF, and document length statistics. Every term
// present in Postings has at least one document with a non-empty position
// list, and documents that yielded zero tokens appear nowhere.
type Index struct {
	// Postings maps term -> docID -> positional posting.
	Postings map[string]PostingMap
	// Fields maps term -> docID -> set of field names the term occurred in.
	Fields map[string]map[string]FieldSet
	// IDF maps term -> ln(N / document frequency).
	IDF map[string]float64
	// DocLengths maps docID -> total indexed token count. Zero-length
	// documents are omitted and therefore ineligible for ranking.
	DocLengths map[string]int
	// AvgDocLength is the mean of DocLengths, 0 for an empty index.
	AvgDocLength float64
	// DocCount is the number of documents with length > 0.
	DocCount int
}

// Build tokenizes every document in the corpus and assembles the Index. For
// each document the fields are concatenated in canonical field order and each
// token receives a strictly increasing position counter local to the document;
// numbering is shared across fields, not restarted per field. An empty or
// fully-unindexable corpus yields empty structures with average length 0 —
// a valid degenerate state, not an error.
func Build(c corpus.Corpus) *Index {
	idx := &Index{
		Postings:   make(map[string]PostingMap),
		Fields:     make(map[string]map[string]FieldSet),
		IDF:        make(map[string]float64),
		DocLengths: make(map[string]int),
	}

	var totalTokens int64
	for pid, doc := range c {
		docLen := idx.addDocument(pid, doc)
		if docLen == 0 {
			continue
		}
		idx.DocLengths[pid] = docLen
		totalTokens += int64(docLen)
	}

	idx.DocCount = len(idx.DocLengths)
	if idx.DocCount > 0 {
		idx.AvgDocLength = float64(totalTokens) / float64(idx.DocCount)
	}

	for term, postings := range idx.Postings {
		idx.IDF[term] = math.Log(float64(idx.DocCount) / float64(len(postings)))
	}

	slog.Default().With("component", "index-builder").Info("index built",
		"documents", idx.DocCount,
		"terms", len(idx.Postings),
		"avg_doc_length", idx.AvgDocLength,
	)
	return idx
}

// addDocument tokenizes one document field by field and records postings and
// field membership. It returns the document's total token count.
func (idx *Index) addDocument(pid string, doc corpus.Document) int {
	fields := corpus.Fields(doc)
	pos := 0
	for _, fieldName := range corpus.FieldOrder() {
		text, ok := fields[fieldName]
		if !ok {
			continue
		}
		for _, token := range tokenizer.Tokenize(text) {
			postings, ok := idx.Postings[token.Term]
			if !ok {
				postings = make(PostingMap)
				idx.Postings[token.Term] = postings
			}
			p, ok := postings[pid]
			if !ok {
				p = &Posting{DocID: pid, Positions: make([]int, 0, 4)}
				postings[pid] = p
			}
			p.Positions = append(p.Positions, pos)

			membership, ok := idx.Fields[token.Term]
			if !ok {
				membership = make(map[string]FieldSet)
				idx.Fields[token.Term] = membership
			}
			fs, ok := membership[pid]
			if !ok {
				fs = make(FieldSet)
				membership[pid] = fs
			}
			fs[fieldName] = struct{}{}

			pos++
		}
	}
	return pos
}

// FieldCoefficient returns the sum of static field weights for every field in
// which term occurred in the given document, or 0 when the pair is absent.
func (idx *Index) FieldCoefficient(term, docID string) float64 {
	membership, ok := idx.Fields[term]
	if !ok {
		return 0
	}
	fs, ok := membership[docID]
	if !ok {
		return 0
	}
	var coef float64
	for fieldName := range fs {
		coef += corpus.FieldWeight(fieldName)
	}
	return coef
}
