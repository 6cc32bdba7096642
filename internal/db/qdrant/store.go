// Package qdrant stores collections in Qdrant over gRPC using Euclid distance.
package qdrant

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/graphvec/internal/db"
)

// Compile-time check: Store implements db.VectorStore.
var _ db.VectorStore = (*Store)(nil)

const (
	payloadSeq  = "_seq"
	scrollCap   = 10000
	defaultPort = 6334
	wait        = true
)

// api is the subset of *qdrant.Client the store uses.
type api interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, req *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Scroll(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

// Config holds connection parameters.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	// CheckCompatibility enables the client/server version check on connect.
	CheckCompatibility bool
}

// Store implements db.VectorStore on Qdrant.
type Store struct {
	api api
	seq atomic.Int64
}

// NewStore creates a gRPC client for the configured host.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: !cfg.CheckCompatibility,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return newStore(client), nil
}

func newStore(a api) *Store {
	s := &Store{api: a}
	// Sequence numbers only need to grow within and across process lifetimes.
	s.seq.Store(time.Now().UnixNano())
	return s
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.api.HealthCheck(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the gRPC connection.
func (s *Store) Close() {
	_ = s.api.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForPing(ctx, s, timeout)
}

// CreateCollection creates a Euclid collection with keyword indexes on every attribute field.
func (s *Store) CreateCollection(ctx context.Context, spec db.CollectionSpec) error {
	if !db.IsValidIdentifier(spec.Name) {
		return fmt.Errorf("%w: %q", db.ErrInvalidIdentifier, spec.Name)
	}
	if spec.Dimension <= 0 {
		return fmt.Errorf("vector dimension must be positive")
	}

	exists, err := s.CollectionExists(ctx, spec.Name)
	if err != nil {
		return err
	}
	if exists {
		return db.ErrCollectionExists
	}

	err = s.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: spec.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(spec.Dimension),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return &db.Error{Op: db.OpCreate, Err: err}
	}

	for _, f := range spec.Fields {
		_, err := s.api.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: spec.Name,
			FieldName:      f,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qdrant.PtrOf(wait),
		})
		if err != nil {
			return &db.Error{Op: db.OpCreate, Err: fmt.Errorf("index %s: %w", f, err)}
		}
	}
	return nil
}

// DropCollection deletes the collection.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return db.ErrCollectionNotFound
	}
	if err := s.api.DeleteCollection(ctx, name); err != nil {
		return &db.Error{Op: db.OpDrop, Err: err}
	}
	return nil
}

// CollectionExists checks whether the collection is present.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	ok, err := s.api.CollectionExists(ctx, name)
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return ok, nil
}
