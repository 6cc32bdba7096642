package db

import (
	"context"
	"time"
)

// VectorStore is the vector database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type VectorStore interface {
	Pinger
	CollectionManager
	Writer
	Searcher
	Reader
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CollectionSpec describes a physical collection: its attribute fields and vector length.
type CollectionSpec struct {
	Name      string
	Fields    []string
	Dimension int
}

// CollectionManager provides collection lifecycle operations.
type CollectionManager interface {
	CreateCollection(ctx context.Context, spec CollectionSpec) error
	DropCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
}

// Row is a single record to persist. Backends assign the row ID and insertion sequence.
type Row struct {
	Fields map[string]string
	Vector []float32
}

// Writer provides record mutation operations.
type Writer interface {
	// Insert writes all rows or returns an error.
	Insert(ctx context.Context, collection string, rows []Row) error
	// DeleteWhere removes rows whose field equals value and returns how many were removed.
	DeleteWhere(ctx context.Context, collection, field, value string) (int, error)
	// Truncate removes every row and returns how many were removed.
	Truncate(ctx context.Context, collection string) (int, error)
}

// AtomicWriter is implemented by backends whose Insert commits every row or none.
// Callers may retry a failed Insert on such a backend without duplicating rows.
type AtomicWriter interface {
	AtomicInsert() bool
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	Collection string
	Vector     []float32
	K          int
	// Fields limits the returned attributes; empty returns all.
	Fields []string
}

// Entry is a single stored row returned by a search or lookup.
type Entry struct {
	ID     string
	Fields map[string]string
	// Distance is the L2 distance to the query vector; zero for scalar lookups.
	Distance float64
	// Seq is the row's insertion sequence within its collection.
	Seq int64
}

// Searcher provides nearest-neighbour search. Entries come back in ascending distance.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) ([]Entry, error)
}

// Reader provides scalar lookups.
type Reader interface {
	FindByField(ctx context.Context, collection, field string, values []string, limit int) ([]Entry, error)
	Count(ctx context.Context, collection string) (int, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
