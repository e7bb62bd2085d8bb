package benchmark

import (
	"fmt"
	"testing"

	"github.com/searchlab/prodsearch/internal/corpus"
	"github.com/searchlab/prodsearch/internal/search/index"
)

var brands = []string{"Acme", "Strider", "Craftline", "Northway", "Vellum"}
var categories = []string{"Footwear", "Clothing", "Accessories", "Electronics", "Home"}

func syntheticCorpus(n int) corpus.Corpus {
	c := make(corpus.Corpus, n)
	for i := 0; i < n; i++ {
		pid := fmt.Sprintf("p%06d", i)
		c[pid] = corpus.Document{
			PID:         pid,
			Title:       fmt.Sprintf("%s Running Shoes Model %d", brands[i%len(brands)], i),
			Description: "Lightweight running shoes with breathable mesh upper and cushioned midsole for daily training and long distance comfort",
			Brand:       brands[i%len(brands)],
			Category:    categories[i%len(categories)],
			SubCategory: "Sports Shoes",
			Seller:      brands[i%len(brands)] + " Official Store",
			Details: map[string]string{
				"color":    []string{"red", "blue", "black", "white", "green"}[i%5],
				"material": "mesh",
			},
		}
	}
	return c
}

// BenchmarkIndexBuild measures full index construction for corpora of
// increasing size.
func BenchmarkIndexBuild(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			c := syntheticCorpus(n)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				idx := index.Build(c)
				_ = idx
			}
		})
	}
}

// BenchmarkFieldCoefficient measures per-term field weight resolution on a
// built index.
func BenchmarkFieldCoefficient(b *testing.B) {
	idx := index.Build(syntheticCorpus(10000))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		coeff := idx.FieldCoefficient("runn", "p000042")
		_ = coeff
	}
}
