// Package embcache puts a content-addressed cache in front of an embedder.
package embcache

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/domain"
)

// CachedEmbedder serves embeddings from a Cache and forwards misses to the inner embedder.
// Vectors of the wrong dimension are rejected before they reach the cache.
type CachedEmbedder struct {
	inner      domain.Embedder
	batch      domain.BatchEmbedder
	cache      Cache
	dimension  int
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly; nil disables it.
// dimension <= 0 skips the length check.
func New(
	inner domain.Embedder,
	cache Cache,
	dimension int,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:      inner,
		batch:      domain.BatchOf(inner),
		cache:      cache,
		dimension:  dimension,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 and Cached = true.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if vec, ok := c.cache.Get(ctx, text); ok {
		c.incCache("hit", 1)
		return domain.EmbeddingResult{Embedding: vec, Cached: true}, nil
	}
	c.incCache("miss", 1)

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	if err := c.check(result.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}

	c.cache.Set(ctx, text, result.Embedding)
	return result, nil
}

// BatchEmbed returns one embedding per text, in input order.
// Cached texts are never re-submitted; the remaining distinct texts go to the inner
// embedder in a single BatchEmbed call.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := make([][]float32, len(texts))
	pending := make(map[string][]int)
	var misses []string
	hits := 0

	for i, text := range texts {
		if idx, ok := pending[text]; ok {
			pending[text] = append(idx, i)
			continue
		}
		if vec, ok := c.cache.Get(ctx, text); ok {
			out[i] = vec
			hits++
			continue
		}
		pending[text] = []int{i}
		misses = append(misses, text)
	}
	c.incCache("hit", hits)
	c.incCache("miss", len(misses))

	result := domain.BatchEmbeddingResult{Embeddings: out, CacheHits: hits}
	if len(misses) == 0 {
		return result, nil
	}

	inner, err := c.batch.BatchEmbed(ctx, misses)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed %d texts: %w", len(misses), err)
	}
	if len(inner.Embeddings) != len(misses) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"batch embed returned %d vectors for %d texts: %w",
			len(inner.Embeddings), len(misses), domain.ErrEmbeddingService)
	}

	for j, text := range misses {
		vec := inner.Embeddings[j]
		if err := c.check(vec); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("text %d: %w", pending[text][0], err)
		}
	}
	for j, text := range misses {
		vec := inner.Embeddings[j]
		c.cache.Set(ctx, text, vec)
		for _, i := range pending[text] {
			out[i] = vec
		}
	}

	c.logger.Debug("Batch embedding served",
		zap.Int("texts", len(texts)),
		zap.Int("cache_hits", hits),
		zap.Int("submitted", len(misses)),
	)

	result.PromptTokens = inner.PromptTokens
	result.TotalTokens = inner.TotalTokens
	return result, nil
}

func (c *CachedEmbedder) check(vec []float32) error {
	if c.dimension <= 0 {
		return nil
	}
	return domain.CheckDimension(vec, c.dimension)
}

func (c *CachedEmbedder) incCache(result string, n int) {
	if c.cacheTotal != nil && n > 0 {
		c.cacheTotal.WithLabelValues(result).Add(float64(n))
	}
}
