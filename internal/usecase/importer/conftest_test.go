package importer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/graphvec/internal/domain/collection"
)

type textUnitRow struct {
	ID      string `parquet:"id"`
	Text    string `parquet:"text"`
	NTokens int64  `parquet:"n_tokens"`
}

type reportRow struct {
	ID      string `parquet:"id"`
	Title   string `parquet:"title"`
	Summary string `parquet:"summary"`
}

type titleOnlyRow struct {
	Title string `parquet:"title"`
}

// recordingInserter keeps every batch and can fail on the n-th call.
type recordingInserter struct {
	batches [][]collection.Record
	types   []collection.Type
	failOn  int
}

var errInsert = errors.New("insert failed")

func (r *recordingInserter) BatchInsert(_ context.Context, t collection.Type, recs []collection.Record) (int, error) {
	if r.failOn > 0 && len(r.batches)+1 == r.failOn {
		return 0, errInsert
	}
	cp := make([]collection.Record, len(recs))
	for i, rec := range recs {
		cp[i] = rec.Clone()
	}
	r.batches = append(r.batches, cp)
	r.types = append(r.types, t)
	return len(recs), nil
}

func (r *recordingInserter) records() []collection.Record {
	var out []collection.Record
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func writeParquet[T any](t *testing.T, dir, name string, rows []T) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestImporter(ins *recordingInserter, batchSize int) *Service {
	return New(ins, collection.NewRegistry(3), nil).WithBatchSize(batchSize)
}
