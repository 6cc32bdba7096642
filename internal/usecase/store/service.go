// Package store writes records into typed collections, embedding them on the way in.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/db"
	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/domain/collection"
	"github.com/kailas-cloud/graphvec/internal/metrics"
	"github.com/kailas-cloud/graphvec/internal/retry"
)

// Stats describes one physical collection.
type Stats struct {
	Type  collection.Type `json:"type"`
	Name  string          `json:"name"`
	Count int             `json:"count"`
}

// Service validates, embeds and persists records.
type Service struct {
	backend  Backend
	registry *collection.Registry
	embedder Embedder
	prefix   string
	policy   retry.Policy
	logger   *zap.Logger
}

// New creates a store service with the default collection prefix and retry policy.
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

// WithRetry sets the policy for idempotent backend calls.
func (s *Service) WithRetry(p retry.Policy) *Service {
	s.policy = p
	return s
}

// Name returns the physical collection name for t.
func (s *Service) Name(t collection.Type) string {
	return s.prefix + string(t)
}

// Insert stores one record and returns 1.
func (s *Service) Insert(ctx context.Context, t collection.Type, rec collection.Record) (int, error) {
	schema, err := s.registry.Resolve(t)
	if err != nil {
		return 0, err
	}
	prepared, text, err := schema.Prepare(rec)
	if err != nil {
		return 0, err
	}

	if !prepared.HasVector() {
		res, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("vectorize record %q: %w", prepared.SourceID(), err)
		}
		if err := domain.CheckDimension(res.Embedding, schema.Dimension()); err != nil {
			return 0, fmt.Errorf("%s: %w", t, err)
		}
		prepared.Vector = res.Embedding
	}

	if err := s.write(ctx, t, []db.Row{toRow(prepared)}); err != nil {
		return 0, err
	}
	return 1, nil
}

// BatchInsert validates every record, embeds all vector-less records through one batch call,
// then writes them in one backend call. Any failure aborts before anything is written.
func (s *Service) BatchInsert(ctx context.Context, t collection.Type, recs []collection.Record) (int, error) {
	schema, err := s.registry.Resolve(t)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	prepared := make([]collection.Record, len(recs))
	var texts []string
	var pending []int
	for i, rec := range recs {
		p, text, err := schema.Prepare(rec)
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		prepared[i] = p
		if !p.HasVector() {
			texts = append(texts, text)
			pending = append(pending, i)
		}
	}

	if len(texts) > 0 {
		res, err := s.embedder.BatchEmbed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("vectorize %d records: %w", len(texts), err)
		}
		if len(res.Embeddings) != len(texts) {
			return 0, fmt.Errorf("got %d embeddings for %d records: %w",
				len(res.Embeddings), len(texts), domain.ErrEmbeddingService)
		}
		for j, i := range pending {
			if err := domain.CheckDimension(res.Embeddings[j], schema.Dimension()); err != nil {
				return 0, fmt.Errorf("record %d: %w", i, err)
			}
			prepared[i].Vector = res.Embeddings[j]
		}
	}

	rows := make([]db.Row, len(prepared))
	for i, p := range prepared {
		rows[i] = toRow(p)
	}
	if err := s.write(ctx, t, rows); err != nil {
		return 0, err
	}

	s.logger.Debug("Batch inserted",
		zap.String("collection", string(t)),
		zap.Int("records", len(rows)),
		zap.Int("embedded", len(texts)),
	)
	return len(rows), nil
}

// Delete removes every record whose field equals value and returns how many were removed.
func (s *Service) Delete(ctx context.Context, t collection.Type, fieldName, value string) (int, error) {
	schema, err := s.registry.Resolve(t)
	if err != nil {
		return 0, err
	}
	if !schema.HasField(fieldName) {
		return 0, domain.NewFieldError(domain.ErrUnknownField, string(t), fieldName)
	}

	var n int
	err = s.retrying(ctx, "delete", func(ctx context.Context) error {
		var err error
		n, err = s.backend.DeleteWhere(ctx, s.Name(t), fieldName, value)
		return err
	})
	s.record(t, "delete", err)
	if err != nil {
		return 0, vectorError(fmt.Sprintf("delete from %s", t), err)
	}
	metrics.StoreRecordsTotal.WithLabelValues(string(t), "delete").Add(float64(n))
	return n, nil
}

// Clear removes every record in the collection and returns how many were removed.
func (s *Service) Clear(ctx context.Context, t collection.Type) (int, error) {
	if !t.IsValid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownCollectionType, t)
	}

	var n int
	err := s.retrying(ctx, "clear", func(ctx context.Context) error {
		var err error
		n, err = s.backend.Truncate(ctx, s.Name(t))
		return err
	})
	s.record(t, "clear", err)
	if err != nil {
		return 0, vectorError(fmt.Sprintf("clear %s", t), err)
	}
	metrics.StoreRecordsTotal.WithLabelValues(string(t), "delete").Add(float64(n))
	return n, nil
}

// EnsureCollections creates the missing physical collections and returns the types it created.
// No types means all of them.
func (s *Service) EnsureCollections(ctx context.Context, types ...collection.Type) ([]collection.Type, error) {
	if len(types) == 0 {
		types = collection.AllTypes()
	}

	var created []collection.Type
	for _, t := range types {
		schema, err := s.registry.Resolve(t)
		if err != nil {
			return created, err
		}
		name := s.Name(t)

		exists, err := s.backend.CollectionExists(ctx, name)
		if err != nil {
			return created, vectorError("check "+name, err)
		}
		if exists {
			continue
		}

		err = s.backend.CreateCollection(ctx, db.CollectionSpec{
			Name:      name,
			Fields:    schema.FieldNames(),
			Dimension: schema.Dimension(),
		})
		if errors.Is(err, db.ErrCollectionExists) {
			continue
		}
		if err != nil {
			return created, vectorError("create "+name, err)
		}

		s.logger.Info("Collection created",
			zap.String("collection", name),
			zap.Int("dimension", schema.Dimension()),
		)
		created = append(created, t)
	}
	return created, nil
}

// DropCollections drops the physical collections that exist. No types means all of them.
func (s *Service) DropCollections(ctx context.Context, types ...collection.Type) error {
	if len(types) == 0 {
		types = collection.AllTypes()
	}
	for _, t := range types {
		if !t.IsValid() {
			return fmt.Errorf("%w: %q", domain.ErrUnknownCollectionType, t)
		}
		name := s.Name(t)
		err := s.backend.DropCollection(ctx, name)
		if errors.Is(err, db.ErrCollectionNotFound) {
			continue
		}
		if err != nil {
			return vectorError("drop "+name, err)
		}
		s.logger.Info("Collection dropped", zap.String("collection", name))
	}
	return nil
}

// Stats returns the record count of a collection.
func (s *Service) Stats(ctx context.Context, t collection.Type) (Stats, error) {
	if !t.IsValid() {
		return Stats{}, fmt.Errorf("%w: %q", domain.ErrUnknownCollectionType, t)
	}

	var n int
	err := s.retrying(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = s.backend.Count(ctx, s.Name(t))
		return err
	})
	if err != nil {
		return Stats{}, vectorError(fmt.Sprintf("count %s", t), err)
	}
	return Stats{Type: t, Name: s.Name(t), Count: n}, nil
}

// write inserts rows. Transient failures are retried only on a db.AtomicWriter backend;
// elsewhere a failed attempt may still have written some rows, and a second one would
// duplicate them.
func (s *Service) write(ctx context.Context, t collection.Type, rows []db.Row) error {
	insert := func(ctx context.Context) error {
		return s.backend.Insert(ctx, s.Name(t), rows)
	}

	var err error
	if aw, ok := s.backend.(db.AtomicWriter); ok && aw.AtomicInsert() {
		err = s.retrying(ctx, "insert", insert)
	} else {
		err = insert(ctx)
	}
	s.record(t, "insert", err)
	if err != nil {
		return vectorError(fmt.Sprintf("insert into %s", t), err)
	}
	metrics.StoreRecordsTotal.WithLabelValues(string(t), "insert").Add(float64(len(rows)))
	return nil
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

func (s *Service) record(t collection.Type, op string, err error) {
	metrics.StoreOperationsTotal.WithLabelValues(string(t), op, metrics.Status(err)).Inc()
}

func toRow(rec collection.Record) db.Row {
	return db.Row{Fields: rec.Fields, Vector: rec.Vector}
}

// vectorError tags backend failures with domain.ErrVectorService.
func vectorError(what string, err error) error {
	if domain.IsInputError(err) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s: %w: %w", what, domain.ErrVectorService, err)
}
