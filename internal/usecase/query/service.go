// Package query runs nearest-neighbour searches over one or many typed collections.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/graphvec/internal/db"
	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/domain/collection"
	"github.com/kailas-cloud/graphvec/internal/domain/collection/field"
	"github.com/kailas-cloud/graphvec/internal/domain/search/result"
	"github.com/kailas-cloud/graphvec/internal/metrics"
	"github.com/kailas-cloud/graphvec/internal/retry"
)

// Options tune a fan-out search.
type Options struct {
	// AllOrNothing fails the whole call on the first collection error and cancels the rest.
	AllOrNothing bool
	// Timeout bounds each collection's search, retries included. Zero uses the service default.
	Timeout time.Duration
}

// Service searches typed collections.
type Service struct {
	backend  Backend
	registry *collection.Registry
	embedder Embedder
	prefix   string
	timeout  time.Duration
	policy   retry.Policy
	logger   *zap.Logger
}

// New creates a query service with the default prefix and retry policy and no per-collection timeout.
func New(backend Backend, registry *collection.Registry, embedder Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		backend:  backend,
		registry: registry,
		embedder: embedder,
		prefix:   collection.DefaultPrefix,
		policy:   retry.DefaultPolicy(),
		logger:   logger,
	}
}

// WithPrefix sets the physical collection name prefix.
func (s *Service) WithPrefix(prefix string) *Service {
	s.prefix = prefix
	return s
}

// WithTimeout sets the default per-collection search timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// WithRetry sets the policy for backend searches.
func (s *Service) WithRetry(p retry.Policy) *Service {
	s.policy = p
	return s
}

// SearchByEmbedding returns up to limit hits in ascending distance; equal distances keep insertion order.
func (s *Service) SearchByEmbedding(
	ctx context.Context, t collection.Type, vector []float32, limit int,
) ([]result.Hit, error) {
	schema, err := s.registry.Resolve(t)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckDimension(vector, schema.Dimension()); err != nil {
		return nil, fmt.Errorf("%s: %w", t, err)
	}
	if limit <= 0 {
		return []result.Hit{}, nil
	}
	return s.search(ctx, t, vector, limit)
}

// SearchByEmbeddings runs one search per query vector against a single collection.
// Results line up with vectors; any failing query fails the call.
func (s *Service) SearchByEmbeddings(
	ctx context.Context, t collection.Type, vectors [][]float32, limit int,
) ([][]result.Hit, error) {
	schema, err := s.registry.Resolve(t)
	if err != nil {
		return nil, err
	}
	for i, v := range vectors {
		if err := domain.CheckDimension(v, schema.Dimension()); err != nil {
			return nil, fmt.Errorf("%s: query %d: %w", t, i, err)
		}
	}
	out := make([][]result.Hit, len(vectors))
	if limit <= 0 {
		for i := range out {
			out[i] = []result.Hit{}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, v := range vectors {
		g.Go(func() error {
			hits, err := s.search(gctx, t, v, limit)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			out[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchByText embeds text through the shared generator and searches one collection.
func (s *Service) SearchByText(ctx context.Context, t collection.Type, text string, limit int) ([]result.Hit, error) {
	if _, err := s.registry.Resolve(t); err != nil {
		return nil, err
	}
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.SearchByEmbedding(ctx, t, vec, limit)
}

// SearchMultiple embeds text once and searches every collection concurrently, each with its own
// limit. Every requested collection gets exactly one entry, holding its hits or its error.
// The returned error is non-nil only for input errors, a failed query embedding, or a collection
// failure under AllOrNothing.
func (s *Service) SearchMultiple(
	ctx context.Context, types []collection.Type, text string, limit int, opts Options,
) (result.Fanout, error) {
	types, err := s.resolveAll(types)
	if err != nil {
		return nil, err
	}
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.fanout(ctx, types, vec, limit, opts)
}

// HybridSearch merges a fan-out into one list ranked by raw distance, truncated to limit.
// Collections that fail are reported in Hybrid.Failed next to the hits of the others.
// The call itself fails only when every collection failed, or on the first failure under
// AllOrNothing.
func (s *Service) HybridSearch(
	ctx context.Context, types []collection.Type, text string, limit int, opts Options,
) (result.Hybrid, error) {
	types, err := s.resolveAll(types)
	if err != nil {
		return result.Hybrid{}, err
	}
	vec, err := s.embed(ctx, text)
	if err != nil {
		return result.Hybrid{}, err
	}

	out, err := s.fanout(ctx, types, vec, limit, opts)
	if err != nil {
		return result.Hybrid{}, err
	}

	failed := out.Failed(types)
	if len(failed) == len(types) && len(types) > 0 {
		return result.Hybrid{}, out.Err(types)
	}
	for _, t := range failed {
		s.logger.Warn("Hybrid search is missing a collection",
			zap.String("collection", string(t)),
			zap.Error(out[t].Err),
		)
	}
	return out.Hybridize(limit, types), nil
}

// QueryBySourceID returns records whose source_id matches, in insertion order.
func (s *Service) QueryBySourceID(
	ctx context.Context, t collection.Type, sourceID string, limit int,
) ([]result.Hit, error) {
	return s.QueryByField(ctx, t, field.SourceID, []string{sourceID}, limit)
}

// QueryByField returns records whose field equals any of values, in insertion order.
// limit <= 0 returns every match.
func (s *Service) QueryByField(
	ctx context.Context, t collection.Type, fieldName string, values []string, limit int,
) ([]result.Hit, error) {
	schema, err := s.registry.Resolve(t)
	if err != nil {
		return nil, err
	}
	if !schema.HasField(fieldName) {
		return nil, domain.NewFieldError(domain.ErrUnknownField, string(t), fieldName)
	}

	var entries []db.Entry
	err = s.retrying(ctx, "find", func(ctx context.Context) error {
		var err error
		entries, err = s.backend.FindByField(ctx, s.prefix+string(t), fieldName, values, limit)
		return err
	})
	if err != nil {
		return nil, vectorError(fmt.Sprintf("query %s by %s", t, fieldName), err)
	}

	hits := make([]result.Hit, len(entries))
	for i, e := range entries {
		hits[i] = result.Hit{Collection: t, ID: e.ID, Fields: e.Fields, Seq: e.Seq}
	}
	return hits, nil
}

func (s *Service) fanout(
	ctx context.Context, types []collection.Type, vec []float32, limit int, opts Options,
) (result.Fanout, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}

	outcomes := make([]result.Outcome, len(types))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		g.Go(func() error {
			cctx := ctx
			if opts.AllOrNothing {
				cctx = gctx
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(cctx, timeout)
				defer cancel()
			}

			var hits []result.Hit
			var err error
			if limit <= 0 {
				hits = []result.Hit{}
			} else {
				hits, err = s.search(cctx, t, vec, limit)
			}
			outcomes[i] = result.Outcome{Hits: hits, Err: err}
			if opts.AllOrNothing && err != nil {
				return fmt.Errorf("%s: %w", t, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(result.Fanout, len(types))
	for i, t := range types {
		out[t] = outcomes[i]
	}
	return out, nil
}

func (s *Service) search(ctx context.Context, t collection.Type, vec []float32, limit int) ([]result.Hit, error) {
	start := time.Now()
	var entries []db.Entry
	err := s.retrying(ctx, "search", func(ctx context.Context) error {
		var err error
		entries, err = s.backend.SearchKNN(ctx, &db.KNNQuery{
			Collection: s.prefix + string(t),
			Vector:     vec,
			K:          limit,
		})
		return err
	})
	metrics.SearchDuration.WithLabelValues(string(t), metrics.Status(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, vectorError(fmt.Sprintf("search %s", t), err)
	}

	hits := make([]result.Hit, len(entries))
	for i, e := range entries {
		hits[i] = result.Hit{
			Collection: t,
			ID:         e.ID,
			Fields:     e.Fields,
			Distance:   e.Distance,
			Score:      result.ScoreFromDistance(e.Distance),
			Seq:        e.Seq,
		}
	}
	result.SortByDistance(hits)
	return result.Truncate(hits, limit), nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	res, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	if err := domain.CheckDimension(res.Embedding, s.registry.Dimension()); err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	return res.Embedding, nil
}

// resolveAll validates types and drops duplicates, keeping first occurrence. No types means all.
func (s *Service) resolveAll(types []collection.Type) ([]collection.Type, error) {
	if len(types) == 0 {
		return collection.AllTypes(), nil
	}
	seen := make(map[collection.Type]struct{}, len(types))
	out := make([]collection.Type, 0, len(types))
	for _, t := range types {
		if _, err := s.registry.Resolve(t); err != nil {
			return nil, err
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func (s *Service) retrying(ctx context.Context, name string, op func(ctx context.Context) error) error {
	return retry.Do(ctx, s.policy, s.logger, name, func(ctx context.Context) error {
		err := op(ctx)
		if db.IsTransient(err) {
			return retry.Transient(err)
		}
		return err
	})
}

func vectorError(what string, err error) error {
	if domain.IsInputError(err) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s: %w: %w", what, domain.ErrVectorService, err)
}
