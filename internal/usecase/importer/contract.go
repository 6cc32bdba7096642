package importer

import (
	"context"

	"github.com/kailas-cloud/graphvec/internal/domain/collection"
)

// Inserter persists a batch of records into one collection.
type Inserter interface {
	BatchInsert(ctx context.Context, t collection.Type, recs []collection.Record) (int, error)
}
