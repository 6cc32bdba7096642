package store

import (
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/graphvec/internal/db"
	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/domain/collection"
	"github.com/kailas-cloud/graphvec/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

func rec(kv ...string) collection.Record {
	f := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[kv[i]] = kv[i+1]
	}
	return collection.NewRecord(f)
}

func TestInsert_AutoEmbedsComposedText(t *testing.T) {
	svc, backend, emb := newTestService(t)
	ctx := context.Background()

	n, err := svc.Insert(ctx, collection.EntityDescription,
		rec("source_id", "e1", "title", "AI", "description", "systems that mimic cognition"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if n != 1 {
		t.Errorf("Insert = %d, want 1", n)
	}
	if !slices.Equal(emb.texts, []string{"AI:systems that mimic cognition"}) {
		t.Errorf("embedded %q", emb.texts)
	}

	rows, err := backend.FindByField(ctx, svc.Name(collection.EntityDescription), "source_id", []string{"e1"}, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("FindByField = %v, %v", rows, err)
	}
	if got := rows[0].Fields["title_description"]; got != "AI:systems that mimic cognition" {
		t.Errorf("derived field = %q", got)
	}
}

func TestInsert_KeepsSuppliedVector(t *testing.T) {
	svc, _, emb := newTestService(t)

	r := rec("source_id", "t1", "text", "hello")
	r.Vector = []float32{1, 2, 3}
	if _, err := svc.Insert(context.Background(), collection.TextUnit, r); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(emb.texts) != 0 {
		t.Errorf("embedder called for a record with a vector: %v", emb.texts)
	}
}

func TestInsert_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	wrongDim := rec("source_id", "x", "text", "t")
	wrongDim.Vector = []float32{1}

	tests := []struct {
		name string
		typ  collection.Type
		rec  collection.Record
		want error
	}{
		{"unknown type", collection.Type("nope"), rec("source_id", "x"), domain.ErrUnknownCollectionType},
		{"missing source_id", collection.TextUnit, rec("text", "t"), domain.ErrMissingField},
		{"missing source field", collection.EntityDescription, rec("source_id", "x", "title", "AI"), domain.ErrMissingField},
		{"unknown field", collection.TextUnit, rec("source_id", "x", "text", "t", "extra", "y"), domain.ErrUnknownField},
		{"too long", collection.EntityTitle, rec("source_id", "x", "title", strings.Repeat("a", 501)), domain.ErrFieldTooLong},
		{"dimension", collection.TextUnit, wrongDim, domain.ErrDimensionMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Insert(ctx, tc.typ, tc.rec); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestInsert_EmbeddingFailure(t *testing.T) {
	svc, backend, emb := newTestService(t)
	emb.err = domain.ErrEmbeddingService
	ctx := context.Background()

	_, err := svc.Insert(ctx, collection.TextUnit, rec("source_id", "x", "text", "t"))
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	if n, _ := backend.Count(ctx, svc.Name(collection.TextUnit)); n != 0 {
		t.Errorf("count = %d after failed insert", n)
	}
}

func TestBatchInsert_OneEmbeddingCall(t *testing.T) {
	svc, backend, emb := newTestService(t)
	ctx := context.Background()

	withVec := rec("source_id", "c", "text", "gamma")
	withVec.Vector = []float32{0, 0, 1}
	recs := []collection.Record{
		rec("source_id", "a", "text", "alpha"),
		withVec,
		rec("source_id", "b", "text", "beta"),
	}

	n, err := svc.BatchInsert(ctx, collection.TextUnit, recs)
	if err != nil {
		t.Fatalf("BatchInsert: %v", err)
	}
	if n != 3 {
		t.Errorf("BatchInsert = %d, want 3", n)
	}
	if emb.batchCalls != 1 || !slices.Equal(emb.texts, []string{"alpha", "beta"}) {
		t.Errorf("batch calls=%d texts=%v", emb.batchCalls, emb.texts)
	}
	if c, _ := backend.Count(ctx, svc.Name(collection.TextUnit)); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
}

func TestBatchInsert_FailFast(t *testing.T) {
	svc, backend, emb := newTestService(t)
	ctx := context.Background()

	recs := []collection.Record{
		rec("source_id", "a", "text", "alpha"),
		rec("source_id", "b"),
	}
	_, err := svc.BatchInsert(ctx, collection.TextUnit, recs)
	if !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if emb.batchCalls != 0 {
		t.Error("validation failure must precede embedding")
	}

	emb.err = domain.ErrEmbeddingService
	_, err = svc.BatchInsert(ctx, collection.TextUnit, recs[:1])
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	if c, _ := backend.Count(ctx, svc.Name(collection.TextUnit)); c != 0 {
		t.Errorf("count = %d, want nothing written", c)
	}
}

func TestBatchInsert_Empty(t *testing.T) {
	svc, _, emb := newTestService(t)
	n, err := svc.BatchInsert(context.Background(), collection.TextUnit, nil)
	if err != nil || n != 0 || emb.batchCalls != 0 {
		t.Fatalf("n=%d err=%v calls=%d", n, err, emb.batchCalls)
	}
}

func TestDelete(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.BatchInsert(ctx, collection.EntityTitle, []collection.Record{
		rec("source_id", "1", "title", "AI"),
		rec("source_id", "2", "title", "ML"),
		rec("source_id", "3", "title", "AI"),
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := svc.Delete(ctx, collection.EntityTitle, "title", "AI")
	if err != nil || n != 2 {
		t.Fatalf("Delete = %d, %v; want 2", n, err)
	}
	left, _ := backend.FindByField(ctx, svc.Name(collection.EntityTitle), "title", []string{"AI"}, 0)
	if len(left) != 0 {
		t.Errorf("%d matching records left", len(left))
	}

	n, err = svc.Delete(ctx, collection.EntityTitle, "title", "nothing")
	if err != nil || n != 0 {
		t.Errorf("Delete(no match) = %d, %v", n, err)
	}

	if _, err := svc.Delete(ctx, collection.EntityTitle, "summary", "x"); !errors.Is(err, domain.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestClearAndStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, _ = svc.BatchInsert(ctx, collection.Document, []collection.Record{
		rec("source_id", "1", "text", "a"),
		rec("source_id", "2", "text", "b"),
	})

	st, err := svc.Stats(ctx, collection.Document)
	if err != nil || st.Count != 2 || st.Name != "graphrag_document" {
		t.Fatalf("Stats = %+v, %v", st, err)
	}

	n, err := svc.Clear(ctx, collection.Document)
	if err != nil || n != 2 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
	if st, _ := svc.Stats(ctx, collection.Document); st.Count != 0 {
		t.Errorf("count after clear = %d", st.Count)
	}

	if _, err := svc.Clear(ctx, collection.Type("bogus")); !errors.Is(err, domain.ErrUnknownCollectionType) {
		t.Errorf("expected ErrUnknownCollectionType, got %v", err)
	}
}

func TestEnsureAndDropCollections(t *testing.T) {
	svc, backend, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.EnsureCollections(ctx)
	if err != nil || len(created) != 0 {
		t.Fatalf("second EnsureCollections created %v, %v", created, err)
	}

	if err := svc.DropCollections(ctx, collection.Relationship); err != nil {
		t.Fatalf("DropCollections: %v", err)
	}
	if ok, _ := backend.CollectionExists(ctx, svc.Name(collection.Relationship)); ok {
		t.Error("relationship collection should be gone")
	}
	if err := svc.DropCollections(ctx, collection.Relationship); err != nil {
		t.Errorf("dropping a missing collection: %v", err)
	}

	created, err = svc.EnsureCollections(ctx)
	if err != nil || !slices.Equal(created, []collection.Type{collection.Relationship}) {
		t.Errorf("EnsureCollections = %v, %v", created, err)
	}
}

func TestWithPrefix(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.WithPrefix("kb_")
	if got := svc.Name(collection.TextUnit); got != "kb_text_unit" {
		t.Errorf("Name = %q", got)
	}
}

func TestVectorError(t *testing.T) {
	err := vectorError("insert", &db.Error{Op: db.OpInsert, Err: errors.New("disk full")})
	if !errors.Is(err, domain.ErrVectorService) {
		t.Errorf("backend failure must match ErrVectorService: %v", err)
	}
	err = vectorError("insert", &domain.DimensionError{Expected: 3, Actual: 2})
	if errors.Is(err, domain.ErrVectorService) {
		t.Error("input errors keep their own identity")
	}
}

func TestInsert_RetriesTransientErrorOnAtomicBackend(t *testing.T) {
	svc, flaky := newFlakyService(t, true, 2)
	ctx := context.Background()

	n, err := svc.Insert(ctx, collection.TextUnit, rec("source_id", "doc_123", "text", "hello world"))
	if err != nil || n != 1 {
		t.Fatalf("Insert = %d, %v", n, err)
	}
	if flaky.inserts != 3 {
		t.Errorf("inserts = %d, want 3", flaky.inserts)
	}
	if st, _ := svc.Stats(ctx, collection.TextUnit); st.Count != 1 {
		t.Errorf("count = %d, want exactly 1 row", st.Count)
	}
}

func TestInsert_NoRetryOnNonAtomicBackend(t *testing.T) {
	svc, flaky := newFlakyService(t, false, 1)

	_, err := svc.Insert(context.Background(), collection.TextUnit, rec("source_id", "doc_123", "text", "hello world"))
	if !errors.Is(err, domain.ErrVectorService) {
		t.Fatalf("expected ErrVectorService, got %v", err)
	}
	if flaky.inserts != 1 {
		t.Errorf("inserts = %d, want 1", flaky.inserts)
	}
}
