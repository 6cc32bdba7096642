package embedding

import (
	"context"
	"sync"

	"github.com/kailas-cloud/graphvec/internal/domain"
)

// scriptedEmbedder fails with errs[i] on call i, then succeeds.
type scriptedEmbedder struct {
	mu    sync.Mutex
	errs  []error
	calls int
	vec   []float32
}

func (s *scriptedEmbedder) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) {
		return s.errs[i]
	}
	return nil
}

func (s *scriptedEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if err := s.next(); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: s.vec, TotalTokens: 1}, nil
}

func (s *scriptedEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if err := s.next(); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vec
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}

// embedOnly has no native batching.
type embedOnly struct{ inner *scriptedEmbedder }

func (e embedOnly) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return e.inner.Embed(ctx, text)
}
