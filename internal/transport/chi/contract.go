package chi

import (
	"context"

	"github.com/kailas-cloud/graphvec"
	healthuc "github.com/kailas-cloud/graphvec/internal/usecase/health"
)

// Store mutates typed collections.
type Store interface {
	Insert(ctx context.Context, t graphvec.CollectionType, rec graphvec.Record) (int, error)
	BatchInsert(ctx context.Context, t graphvec.CollectionType, recs []graphvec.Record) (int, error)
	Delete(ctx context.Context, t graphvec.CollectionType, field, value string) (int, error)
	Clear(ctx context.Context, t graphvec.CollectionType) (int, error)
	Stats(ctx context.Context, types ...graphvec.CollectionType) ([]graphvec.Stats, error)
}

// Searcher runs nearest-neighbour and scalar queries.
type Searcher interface {
	SearchByEmbedding(ctx context.Context, t graphvec.CollectionType, vector []float32, limit int) ([]graphvec.Hit, error)
	SearchByEmbeddings(
		ctx context.Context, t graphvec.CollectionType, vectors [][]float32, limit int,
	) ([][]graphvec.Hit, error)
	SearchByText(ctx context.Context, t graphvec.CollectionType, text string, limit int) ([]graphvec.Hit, error)
	SearchMultipleCollections(
		ctx context.Context, types []graphvec.CollectionType, text string, limit int, opts ...graphvec.SearchOption,
	) (graphvec.MultiResult, error)
	HybridSearch(
		ctx context.Context, types []graphvec.CollectionType, text string, limit int, opts ...graphvec.SearchOption,
	) (graphvec.HybridResult, error)
	QueryBySourceID(ctx context.Context, t graphvec.CollectionType, sourceID string, limit int) ([]graphvec.Hit, error)
}

// Embedder exposes the shared embedding pipeline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Health(ctx context.Context) (healthuc.Report, error)
}

// API is everything the HTTP layer calls. *graphvec.Client implements it.
type API interface {
	Store
	Searcher
	Embedder
	HealthChecker
}
