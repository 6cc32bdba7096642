package graphvec

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/graphvec/internal/domain"
	queryuc "github.com/kailas-cloud/graphvec/internal/usecase/query"
)

// Embed returns the vector for text, served from the cache when possible.
// It does not need a connection unless the cache lives in the backend.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	e, err := c.currentEmbedder()
	if err != nil {
		return nil, err
	}
	res, err := e.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return res.Embedding, nil
}

// EmbedBatch returns one vector per text, in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := c.currentEmbedder()
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	res, err := e.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed batch: got %d vectors for %d texts: %w",
			len(res.Embeddings), len(texts), domain.ErrEmbeddingService)
	}
	return res.Embeddings, nil
}

// Insert stores one record, embedding it when rec.Vector is nil. Returns 1 on success.
func (c *Client) Insert(ctx context.Context, t CollectionType, rec Record) (int, error) {
	s, err := c.session()
	if err != nil {
		return 0, err
	}
	return s.store.Insert(ctx, t, rec)
}

// BatchInsert stores all records or none. Vector-less records are embedded in one batch.
func (c *Client) BatchInsert(ctx context.Context, t CollectionType, recs []Record) (int, error) {
	s, err := c.session()
	if err != nil {
		return 0, err
	}
	return s.store.BatchInsert(ctx, t, recs)
}

// Delete removes every record whose field equals value and returns how many were removed.
func (c *Client) Delete(ctx context.Context, t CollectionType, field, value string) (int, error) {
	s, err := c.session()
	if err != nil {
		return 0, err
	}
	return s.store.Delete(ctx, t, field, value)
}

// Clear removes every record of a collection and returns how many were removed.
func (c *Client) Clear(ctx context.Context, t CollectionType) (int, error) {
	s, err := c.session()
	if err != nil {
		return 0, err
	}
	return s.store.Clear(ctx, t)
}

// Stats returns the record count of each collection. No types means all of them.
func (c *Client) Stats(ctx context.Context, types ...CollectionType) ([]Stats, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		types = AllCollectionTypes()
	}
	out := make([]Stats, 0, len(types))
	for _, t := range types {
		st, err := s.store.Stats(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// InitCollections creates the missing collections and returns the types it created.
// No types means all of them.
func (c *Client) InitCollections(ctx context.Context, types ...CollectionType) ([]CollectionType, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	return s.store.EnsureCollections(ctx, types...)
}

// ResetCollections drops and recreates collections, losing their records.
// No types means all of them.
func (c *Client) ResetCollections(ctx context.Context, types ...CollectionType) error {
	s, err := c.session()
	if err != nil {
		return err
	}
	if err := s.store.DropCollections(ctx, types...); err != nil {
		return err
	}
	_, err = s.store.EnsureCollections(ctx, types...)
	return err
}

// SearchByEmbedding returns up to limit records nearest to vector, nearest first.
func (c *Client) SearchByEmbedding(ctx context.Context, t CollectionType, vector []float32, limit int) ([]Hit, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	return s.query.SearchByEmbedding(ctx, t, vector, limit)
}

// SearchByEmbeddings searches one collection with several query vectors.
// The i-th result list answers vectors[i].
func (c *Client) SearchByEmbeddings(
	ctx context.Context, t CollectionType, vectors [][]float32, limit int,
) ([][]Hit, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	return s.query.SearchByEmbeddings(ctx, t, vectors, limit)
}

// SearchByText embeds text and returns up to limit nearest records.
func (c *Client) SearchByText(ctx context.Context, t CollectionType, text string, limit int) ([]Hit, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	return s.query.SearchByText(ctx, t, text, limit)
}

// SearchOption adjusts a single multi-collection search.
type SearchOption func(*queryuc.Options)

// AllOrNothing overrides the client's all-or-nothing mode for one call.
func AllOrNothing(enabled bool) SearchOption {
	return func(o *queryuc.Options) { o.AllOrNothing = enabled }
}

// SearchMultipleCollections embeds text once and searches each collection independently,
// up to limit hits each. A failed collection carries its error in its Outcome unless
// all-or-nothing mode is on. No types means all of them.
func (c *Client) SearchMultipleCollections(
	ctx context.Context, types []CollectionType, text string, limit int, opts ...SearchOption,
) (MultiResult, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	return s.query.SearchMultiple(ctx, types, text, limit, c.queryOptions(opts))
}

// HybridSearch searches several collections and merges the hits into one list ordered by
// distance, truncated to limit. Collections that failed are listed in HybridResult.Failed.
func (c *Client) HybridSearch(
	ctx context.Context, types []CollectionType, text string, limit int, opts ...SearchOption,
) (HybridResult, error) {
	s, err := c.session()
	if err != nil {
		return HybridResult{}, err
	}
	return s.query.HybridSearch(ctx, types, text, limit, c.queryOptions(opts))
}

// QueryBySourceID returns the records of a collection with the given source_id.
func (c *Client) QueryBySourceID(ctx context.Context, t CollectionType, sourceID string, limit int) ([]Hit, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	return s.query.QueryBySourceID(ctx, t, sourceID, limit)
}

// ImportParquetDir imports every GraphRAG parquet file in dir and returns the records
// inserted per file.
func (c *Client) ImportParquetDir(ctx context.Context, dir string) (map[string]int, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	return s.importer.ImportDir(ctx, dir)
}

// ImportParquetFile imports one parquet file into collection t.
func (c *Client) ImportParquetFile(ctx context.Context, path string, t CollectionType) (int, error) {
	s, err := c.session()
	if err != nil {
		return 0, err
	}
	return s.importer.ImportFile(ctx, path, t)
}

func (c *Client) queryOptions(opts []SearchOption) queryuc.Options {
	o := queryuc.Options{AllOrNothing: c.cfg.allOrNothing, Timeout: c.cfg.queryTimeout}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
