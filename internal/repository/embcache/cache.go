package embcache

import (
	"context"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache maps exact text to its embedding. Entries are never invalidated by the cache itself.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, text string) ([]float32, bool)
	Set(ctx context.Context, text string, vec []float32)
}

// MemoryCache is an unbounded in-process cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]float32
}

// NewMemoryCache creates an empty unbounded cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]float32)}
}

// Get returns a copy of the cached vector.
func (c *MemoryCache) Get(_ context.Context, text string) ([]float32, bool) {
	c.mu.RLock()
	vec, ok := c.entries[text]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return slices.Clone(vec), true
}

// Set stores a copy of vec. Concurrent writers of the same text converge on one value.
func (c *MemoryCache) Set(_ context.Context, text string, vec []float32) {
	c.mu.Lock()
	c.entries[text] = slices.Clone(vec)
	c.mu.Unlock()
}

// Len returns the number of cached texts.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LRUCache bounds memory by evicting the least recently used texts.
type LRUCache struct {
	lru *lru.Cache[string, []float32]
}

// NewLRUCache creates a cache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	l, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRUCache{lru: l}, nil
}

// Get returns a copy of the cached vector.
func (c *LRUCache) Get(_ context.Context, text string) ([]float32, bool) {
	vec, ok := c.lru.Get(text)
	if !ok {
		return nil, false
	}
	return slices.Clone(vec), true
}

// Set stores a copy of vec.
func (c *LRUCache) Set(_ context.Context, text string, vec []float32) {
	c.lru.Add(text, slices.Clone(vec))
}

// Len returns the number of cached texts.
func (c *LRUCache) Len() int { return c.lru.Len() }
