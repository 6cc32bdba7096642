package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/db"
)

// KeyPrefix namespaces cache entries inside a shared key-value store.
const KeyPrefix = "emb_cache:"

// store is the consumer interface for the persistent cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// KVCache persists embeddings in a key-value store, keyed by the SHA-256 of the text.
// Store failures degrade to misses.
type KVCache struct {
	store  store
	logger *zap.Logger
}

// NewKVCache creates a cache over a key-value store.
func NewKVCache(s store, logger *zap.Logger) *KVCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVCache{store: s, logger: logger}
}

// Get loads and decodes the vector for text.
func (c *KVCache) Get(ctx context.Context, text string) ([]float32, bool) {
	key := cacheKey(text)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := db.DecodeVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

// Set encodes and writes the vector for text.
func (c *KVCache) Set(ctx context.Context, text string, vec []float32) {
	key := cacheKey(text)
	if err := c.store.Set(ctx, key, db.EncodeVector(vec)); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return KeyPrefix + hex.EncodeToString(h[:])
}
