package graphvec

import (
	"context"
	"hash/fnv"
	"sync"
	"testing"
)

const testDim = 4

// hashEmbedder maps text to a deterministic vector and records every text it was asked for.
type hashEmbedder struct {
	mu    sync.Mutex
	texts []string
}

func (h *hashEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	h.mu.Lock()
	h.texts = append(h.texts, text)
	h.mu.Unlock()

	f := fnv.New64a()
	_, _ = f.Write([]byte(text))
	sum := f.Sum64()
	v := make([]float32, testDim)
	for i := range v {
		v[i] = float32((sum>>(i*16))&0xffff) / 0xffff
	}
	return EmbeddingResult{Embedding: v, TotalTokens: len(text)}, nil
}

func (h *hashEmbedder) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.texts)
}

func (h *hashEmbedder) last() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.texts) == 0 {
		return ""
	}
	return h.texts[len(h.texts)-1]
}

// newConnectedClient returns a client on in-memory SQLite with every collection created.
func newConnectedClient(t *testing.T, opts ...Option) (*Client, *hashEmbedder) {
	t.Helper()
	emb := &hashEmbedder{}
	base := []Option{WithSQLite(":memory:"), WithDimension(testDim), WithEmbedder(emb), WithRetry(1, 0, 0)}
	c, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Close)
	if _, err := c.InitCollections(context.Background()); err != nil {
		t.Fatalf("InitCollections: %v", err)
	}
	return c, emb
}

// shortEmbedder returns vectors one element shorter than testDim.
type shortEmbedder struct{}

func (shortEmbedder) Embed(_ context.Context, _ string) (EmbeddingResult, error) {
	return EmbeddingResult{Embedding: make([]float32, testDim-1)}, nil
}
