package embedding

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/graphvec/internal/domain"
)

// DimensionCheckedEmbedder rejects provider vectors whose length is not the configured dimension.
type DimensionCheckedEmbedder struct {
	inner     domain.Embedder
	batch     domain.BatchEmbedder
	dimension int
}

// NewDimensionCheckedEmbedder wraps inner. A non-positive dimension disables the check.
func NewDimensionCheckedEmbedder(inner domain.Embedder, dimension int) *DimensionCheckedEmbedder {
	return &DimensionCheckedEmbedder{inner: inner, batch: domain.BatchOf(inner), dimension: dimension}
}

// Embed returns the inner result, or a domain.DimensionError for a wrong-length vector.
func (d *DimensionCheckedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := d.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	if err := d.check(res.Embedding); err != nil {
		return domain.EmbeddingResult{}, err
	}
	return res, nil
}

// BatchEmbed fails the whole batch when any vector has the wrong length.
func (d *DimensionCheckedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := d.batch.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	for i, vec := range res.Embeddings {
		if err := d.check(vec); err != nil {
			return domain.BatchEmbeddingResult{}, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return res, nil
}

func (d *DimensionCheckedEmbedder) check(vec []float32) error {
	if d.dimension <= 0 {
		return nil
	}
	return domain.CheckDimension(vec, d.dimension)
}
