package graphvec

import (
	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/domain/collection"
	"github.com/kailas-cloud/graphvec/internal/domain/search/result"
	storeuc "github.com/kailas-cloud/graphvec/internal/usecase/store"
)

// CollectionType names one of the fixed GraphRAG collections.
type CollectionType = collection.Type

// Collection types.
const (
	Document             = collection.Document
	Relationship         = collection.Relationship
	TextUnit             = collection.TextUnit
	EntityTitle          = collection.EntityTitle
	EntityDescription    = collection.EntityDescription
	CommunityTitle       = collection.CommunityTitle
	CommunitySummary     = collection.CommunitySummary
	CommunityFullContent = collection.CommunityFullContent
)

// Record is a set of named string fields plus an optional precomputed vector.
type Record = collection.Record

// Hit is one search or lookup result.
type Hit = result.Hit

// Outcome is one collection's share of a multi-collection search.
type Outcome = result.Outcome

// MultiResult maps each searched collection to its outcome.
type MultiResult = result.Fanout

// HybridResult is a merged multi-collection ranking plus the collections that failed.
type HybridResult = result.Hybrid

// Stats describes one physical collection.
type Stats = storeuc.Stats

// Embedder turns text into a vector. Implementations may also implement
// BatchEmbed(ctx, []string) (domain.BatchEmbeddingResult, error) for native batching.
type Embedder = domain.Embedder

// EmbeddingResult is what an Embedder returns.
type EmbeddingResult = domain.EmbeddingResult

// NewRecord builds a Record from fields.
func NewRecord(fields map[string]string) Record { return collection.NewRecord(fields) }

// AllCollectionTypes returns every collection type in canonical order.
func AllCollectionTypes() []CollectionType { return collection.AllTypes() }

// ParseCollectionType validates a collection type name.
func ParseCollectionType(s string) (CollectionType, error) { return collection.ParseType(s) }
