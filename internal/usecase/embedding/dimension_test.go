package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/graphvec/internal/domain"
)

func TestDimensionCheckedEmbedder_RejectsShortVector(t *testing.T) {
	inner := &scriptedEmbedder{vec: []float32{1, 2}}
	d := NewDimensionCheckedEmbedder(inner, 4)

	_, err := d.Embed(context.Background(), "x")
	var de *domain.DimensionError
	if !errors.As(err, &de) || de.Expected != 4 || de.Actual != 2 {
		t.Fatalf("expected dimension error 4/2, got %v", err)
	}

	_, err = d.BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("batch: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestDimensionCheckedEmbedder_PassesMatchingVector(t *testing.T) {
	inner := &scriptedEmbedder{vec: []float32{1, 2, 3, 4}}
	d := NewDimensionCheckedEmbedder(embedOnly{inner}, 4)

	res, err := d.Embed(context.Background(), "x")
	if err != nil || len(res.Embedding) != 4 {
		t.Fatalf("embed = %v, %v", res.Embedding, err)
	}
	batch, err := d.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil || len(batch.Embeddings) != 2 {
		t.Fatalf("batch = %v, %v", batch.Embeddings, err)
	}
}

func TestDimensionCheckedEmbedder_ZeroDimensionDisablesCheck(t *testing.T) {
	d := NewDimensionCheckedEmbedder(&scriptedEmbedder{vec: []float32{1}}, 0)
	if _, err := d.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
