package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/graphvec/internal/db"
)

const (
	fieldVector = "vector"
	fieldSeq    = "__seq"
	fieldScore  = "__vector_score"

	// tagSeparator keeps whole attribute values as a single tag; commas are common in text.
	tagSeparator = "\x1f"
)

// CreateCollection creates an FT index over hashes under the collection's key prefix.
func (s *Store) CreateCollection(ctx context.Context, spec db.CollectionSpec) error {
	args, err := s.buildCreateArgs(spec)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "already exists") {
			return db.ErrCollectionExists
		}
		return &db.Error{Op: db.OpCreate, Err: err}
	}
	return nil
}

// DropCollection deletes the collection's hashes, its sequence counter and the index.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return db.ErrCollectionNotFound
	}

	if _, err := s.Truncate(ctx, name); err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(s.indexName(name)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return db.ErrCollectionNotFound
		}
		return &db.Error{Op: db.OpDrop, Err: err}
	}

	if err := s.do(ctx, s.b().Del().Key(s.seqKey(name)).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDrop, Err: err}
	}
	return nil
}

// CollectionExists checks the index via FT.INFO; an unknown index means absent.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(s.indexName(name)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "not found") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return true, nil
}

func (s *Store) buildCreateArgs(spec db.CollectionSpec) ([]string, error) {
	if !db.IsValidIdentifier(spec.Name) {
		return nil, fmt.Errorf("%w: %q", db.ErrInvalidIdentifier, spec.Name)
	}
	if spec.Dimension <= 0 {
		return nil, errors.New("vector DIM must be positive")
	}

	args := []string{
		s.indexName(spec.Name),
		"ON", "HASH",
		"PREFIX", "1", s.docPrefix(spec.Name),
		"SCHEMA",
	}

	for _, f := range spec.Fields {
		if !db.IsValidIdentifier(f) {
			return nil, fmt.Errorf("%w: %q", db.ErrInvalidIdentifier, f)
		}
		args = append(args, f, "TAG", "SEPARATOR", tagSeparator, "CASESENSITIVE")
	}

	args = append(args, fieldSeq, "NUMERIC")
	args = append(args,
		fieldVector, "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(spec.Dimension),
		"DISTANCE_METRIC", "L2",
	)
	return args, nil
}
