package benchmark

import (
	"fmt"
	"testing"

	"github.com/searchlab/prodsearch/internal/search"
)

// BenchmarkSearch measures end-to-end query latency (tokenize, candidate
// selection, BM25 ranking, sorting) over corpora of increasing size.
func BenchmarkSearch(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"single_term", "shoes"},
		{"narrow", "red running shoes"},
		{"union_fallback", "red wallet headphones"},
		{"long", "comfortable lightweight breathable red running shoes for marathon training sessions"},
	}

	sizes := []int{1000, 10000}
	for _, n := range sizes {
		engine := search.New(syntheticCorpus(n))
		for _, q := range queries {
			b.Run(fmt.Sprintf("docs_%d/%s", n, q.name), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					result := engine.Search(q.query)
					_ = result
				}
			})
		}
	}
}

// BenchmarkSearchParallel measures concurrent read throughput against one
// shared engine.
func BenchmarkSearchParallel(b *testing.B) {
	engine := search.New(syntheticCorpus(10000))
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			result := engine.Search("red running shoes")
			_ = result
		}
	})
}
