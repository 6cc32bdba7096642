package store

import (
	"context"

	"github.com/kailas-cloud/graphvec/internal/db"
	"github.com/kailas-cloud/graphvec/internal/domain"
)

// Backend is the subset of db.VectorStore the store writes through.
type Backend interface {
	db.CollectionManager
	db.Writer
	Count(ctx context.Context, collection string) (int, error)
}

// Embedder vectorizes record text, singly or in one consolidated batch.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
