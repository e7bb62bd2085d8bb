package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlab/prodsearch/internal/search"
	"github.com/searchlab/prodsearch/internal/search/ranker"
	"github.com/searchlab/prodsearch/pkg/config"
)

// stubBackend is an in-memory Backend. A missing key answers with redis.Nil,
// matching what the real client returns.
type stubBackend struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	onMiss func()
	sets   int
}

func newStubBackend() *stubBackend {
	return &stubBackend{data: make(map[string]string)}
}

func (s *stubBackend) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		if s.onMiss != nil {
			hook := s.onMiss
			s.onMiss = nil
			hook()
		}
		return "", redis.Nil
	}
	return v, nil
}

func (s *stubBackend) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	s.data[key] = string(value.([]byte))
	return nil
}

func (s *stubBackend) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.data))
	s.data = make(map[string]string)
	return n, nil
}

func newTestCache(backend Backend) *QueryCache {
	return New(backend, config.RedisConfig{CacheTTL: time.Minute})
}

func sampleResult(query string) *search.Result {
	return &search.Result{
		Query:     query,
		Terms:     []string{"red", "sho"},
		TotalHits: 1,
		Results:   []ranker.ScoredDoc{{DocID: "p1", Score: 1.5}},
	}
}

// Queries that tokenize to the same term set must share one cache entry,
// regardless of casing, token order, or punctuation.
func TestBuildKeyNormalisesQuery(t *testing.T) {
	c := newTestCache(newStubBackend())

	base := c.buildKey("red running shoes")
	assert.Equal(t, base, c.buildKey("Running SHOES, red"))
	assert.Equal(t, base, c.buildKey("shoes red running"))
	assert.NotEqual(t, base, c.buildKey("blue running shoes"))
}

func TestGetMissThenHit(t *testing.T) {
	backend := newStubBackend()
	c := newTestCache(backend)
	ctx := context.Background()

	_, ok := c.Get(ctx, "red shoes")
	assert.False(t, ok)

	c.Set(ctx, "red shoes", sampleResult("red shoes"))
	got, ok := c.Get(ctx, "red shoes")
	require.True(t, ok)
	assert.Equal(t, "p1", got.Results[0].DocID)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrComputeStoresOnMiss(t *testing.T) {
	backend := newStubBackend()
	c := newTestCache(backend)
	ctx := context.Background()

	calls := 0
	result, cached := c.GetOrCompute(ctx, "red shoes", func() *search.Result {
		calls++
		return sampleResult("red shoes")
	})
	assert.False(t, cached)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, backend.sets)

	result, cached = c.GetOrCompute(ctx, "red shoes", func() *search.Result {
		calls++
		return sampleResult("red shoes")
	})
	assert.True(t, cached)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "p1", result.Results[0].DocID)
}

// Concurrent identical queries collapse into one computation even when the
// backend is erroring, so a Redis outage cannot stampede the engine.
func TestGetOrComputeCollapsesConcurrentCalls(t *testing.T) {
	backend := newStubBackend()
	backend.getErr = errors.New("connection refused")
	c := newTestCache(backend)

	var calls int
	gate := make(chan struct{})
	compute := func() *search.Result {
		calls++
		<-gate
		return sampleResult("red shoes")
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*search.Result, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.GetOrCompute(context.Background(), "red shoes", compute)
		}(i)
	}

	// Let the goroutines pile up on the singleflight gate before releasing.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, calls)
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "p1", r.Results[0].DocID)
	}
}

// The re-check inside the singleflight callback picks up an entry written
// between the first miss and acquiring the flight, so compute is skipped.
func TestGetOrComputeDoubleCheckInsideFlight(t *testing.T) {
	backend := newStubBackend()
	c := newTestCache(backend)
	ctx := context.Background()

	data, err := json.Marshal(sampleResult("red shoes"))
	require.NoError(t, err)
	key := c.buildKey("red shoes")

	// The hook fires on the first miss, planting the entry another request
	// would have written, so the lookup inside the flight hits.
	backend.onMiss = func() {
		backend.data[key] = string(data)
	}

	result, cached := c.GetOrCompute(ctx, "red shoes", func() *search.Result {
		t.Error("compute ran despite the entry appearing before the flight")
		return sampleResult("red shoes")
	})
	assert.False(t, cached)
	assert.Equal(t, "p1", result.Results[0].DocID)
}

func TestInvalidateFlushesKeyspace(t *testing.T) {
	backend := newStubBackend()
	c := newTestCache(backend)
	ctx := context.Background()

	c.Set(ctx, "red shoes", sampleResult("red shoes"))
	c.Set(ctx, "blue shoes", sampleResult("blue shoes"))
	require.NoError(t, c.Invalidate(ctx))

	_, ok := c.Get(ctx, "red shoes")
	assert.False(t, ok)
}

func TestGetIgnoresCorruptEntry(t *testing.T) {
	backend := newStubBackend()
	c := newTestCache(backend)
	ctx := context.Background()

	backend.data[c.buildKey("red shoes")] = "not json"
	_, ok := c.Get(ctx, "red shoes")
	assert.False(t, ok)
}
