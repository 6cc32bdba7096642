package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/graphvec/internal/db"
	"github.com/kailas-cloud/graphvec/internal/db/sqlite"
	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/domain/collection"
	"github.com/kailas-cloud/graphvec/internal/retry"
)

const testDim = 3

// textEmbedder derives a deterministic vector from the text and counts calls.
type textEmbedder struct {
	mu         sync.Mutex
	dim        int
	err        error
	texts      []string
	batchCalls int
}

func vectorFor(text string, dim int) []float32 {
	v := make([]float32, dim)
	for i, r := range text {
		v[i%dim] += float32(r) / 100
	}
	return v
}

func (e *textEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	e.texts = append(e.texts, text)
	return domain.EmbeddingResult{Embedding: vectorFor(text, e.dim)}, nil
}

func (e *textEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchCalls++
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		e.texts = append(e.texts, text)
		out[i] = vectorFor(text, e.dim)
	}
	return domain.BatchEmbeddingResult{Embeddings: out}, nil
}

func newTestService(t *testing.T) (*Service, *sqlite.Store, *textEmbedder) {
	t.Helper()
	backend, err := sqlite.NewStore(sqlite.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("sqlite.NewStore: %v", err)
	}
	t.Cleanup(backend.Close)

	emb := &textEmbedder{dim: testDim}
	svc := New(backend, collection.NewRegistry(testDim), emb, nil).
		WithRetry(retry.Policy{Attempts: 1})
	if _, err := svc.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("EnsureCollections: %v", err)
	}
	return svc, backend, emb
}

// flakyBackend fails the first failures inserts with a transient backend error.
type flakyBackend struct {
	*sqlite.Store
	atomic   bool
	failures int
	inserts  int
}

func (f *flakyBackend) Insert(ctx context.Context, coll string, rows []db.Row) error {
	f.inserts++
	if f.inserts <= f.failures {
		return &db.Error{Op: db.OpInsert, Err: errors.New("database is locked")}
	}
	return f.Store.Insert(ctx, coll, rows)
}

func (f *flakyBackend) AtomicInsert() bool { return f.atomic }

func newFlakyService(t *testing.T, atomic bool, failures int) (*Service, *flakyBackend) {
	t.Helper()
	svc, backend, emb := newTestService(t)
	flaky := &flakyBackend{Store: backend, atomic: atomic, failures: failures}
	svc = New(flaky, collection.NewRegistry(testDim), emb, nil).
		WithRetry(retry.Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})
	return svc, flaky
}
