package embcache

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/db"
	"github.com/kailas-cloud/graphvec/internal/domain"
)

// countingEmbedder returns a vector derived from the text length and records every call.
type countingEmbedder struct {
	mu         sync.Mutex
	dim        int
	err        error
	embedCalls int
	batchCalls [][]string
	short      bool // return one vector fewer than requested
}

func (m *countingEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dim)
	for i := range v {
		v[i] = float32(len(text)) + float32(i)/10
	}
	return v
}

func (m *countingEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vector(text), PromptTokens: 2, TotalTokens: 2}, nil
}

func (m *countingEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls = append(m.batchCalls, append([]string(nil), texts...))
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	n := len(texts)
	if m.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = m.vector(texts[i])
	}
	return domain.BatchEmbeddingResult{Embeddings: out, PromptTokens: 2 * n, TotalTokens: 2 * n}, nil
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func newTestCachedEmbedder(t *testing.T, inner *countingEmbedder) *CachedEmbedder {
	t.Helper()
	return New(inner, NewMemoryCache(), inner.dim, nil, zap.NewNop())
}
