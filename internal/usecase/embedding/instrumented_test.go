package embedding

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &scriptedEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.TotalTokens != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestInstrumentedEmbedder_CountsErrorsByKind(t *testing.T) {
	inner := &scriptedEmbedder{errs: []error{
		domain.ErrEmbeddingService,
		&domain.DimensionError{Expected: 4, Actual: 3},
		context.DeadlineExceeded,
	}}
	p := NewInstrumentedEmbedder(inner, "test-err", "m", nil)
	ctx := context.Background()

	for range 3 {
		if _, err := p.Embed(ctx, "x"); err == nil {
			t.Fatal("expected error")
		}
	}

	for _, kind := range []string{"service", "input", "timeout"} {
		if got := testutil.ToFloat64(metrics.EmbeddingErrorsTotal.WithLabelValues("test-err", "m", kind)); got != 1 {
			t.Errorf("%s errors = %v, want 1", kind, got)
		}
	}
}

func TestInstrumentedEmbedder_BatchUsesFallback(t *testing.T) {
	inner := &scriptedEmbedder{vec: []float32{1}}
	p := NewInstrumentedEmbedder(embedOnly{inner}, "test", "m", nil)

	res, err := p.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 3 || inner.calls != 3 {
		t.Errorf("embeddings=%d calls=%d", len(res.Embeddings), inner.calls)
	}
}

func TestInstrumentedEmbedder_BatchError(t *testing.T) {
	inner := &scriptedEmbedder{errs: []error{domain.ErrEmbeddingService}}
	p := NewInstrumentedEmbedder(inner, "test", "m", nil)

	_, err := p.BatchEmbed(context.Background(), []string{"a"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
}
