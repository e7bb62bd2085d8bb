// Package benchmark contains Go benchmarks for the tokenizer, index builder,
// and search pipeline, measuring throughput and allocation behaviour.
package benchmark

import (
	"strings"
	"testing"

	"github.com/searchlab/prodsearch/internal/search/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "Red Running Shoes with breathable mesh upper",
	"medium": `Lightweight running shoes built for daily training. The breathable
        mesh upper keeps feet cool while the cushioned midsole absorbs impact on
        long runs. A durable rubber outsole provides reliable traction on both
        road and treadmill surfaces, and the padded collar prevents chafing
        around the ankle during extended sessions.`,
	"long": strings.Repeat(`Product catalogues mix short titles with long marketing
        descriptions, brand names, category paths, and seller names. Tokenisation
        normalises all of them into lowercase stemmed terms, dropping stop words
        and single characters, so that a query for running shoes matches documents
        describing runners, shoes, and sports footwear alike. Positional
        information is preserved per document for future phrase matching. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens := tokenizer.Tokenize(text)
				_ = tokens
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := tokenizer.Tokenize(text)
			_ = tokens
		}
	})
}

func BenchmarkTerms(b *testing.B) {
	query := "comfortable red running shoes for marathon training"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		terms := tokenizer.Terms(query)
		_ = terms
	}
}
