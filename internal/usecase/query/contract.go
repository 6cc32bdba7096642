package query

import (
	"context"

	"github.com/kailas-cloud/graphvec/internal/db"
	"github.com/kailas-cloud/graphvec/internal/domain"
)

// Backend is the read side of the vector store.
type Backend interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Entry, error)
	FindByField(ctx context.Context, collection, field string, values []string, limit int) ([]db.Entry, error)
}

// Embedder vectorizes query text. It must share its cache with ingestion.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
