package query

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/graphvec/internal/db"
	"github.com/kailas-cloud/graphvec/internal/db/sqlite"
	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/domain/collection"
	"github.com/kailas-cloud/graphvec/internal/retry"
)

const testDim = 3

// textEmbedder derives a deterministic vector from the text and counts calls.
type textEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
}

func vectorFor(text string) []float32 {
	v := make([]float32, testDim)
	for i, r := range text {
		v[i%testDim] += float32(r) / 100
	}
	return v
}

func (e *textEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: vectorFor(text)}, nil
}

// fakeBackend serves canned entries per physical collection and can fail or block some of them.
type fakeBackend struct {
	mu      sync.Mutex
	entries map[string][]db.Entry
	fail    map[string]error
	block   map[string]bool
	calls   map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		entries: map[string][]db.Entry{},
		fail:    map[string]error{},
		block:   map[string]bool{},
		calls:   map[string]int{},
	}
}

func (f *fakeBackend) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Entry, error) {
	f.mu.Lock()
	f.calls[q.Collection]++
	entries, err, block := f.entries[q.Collection], f.fail[q.Collection], f.block[q.Collection]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, &db.Error{Op: db.OpSearch, Err: ctx.Err()}
	}
	if err != nil {
		return nil, err
	}
	if len(entries) > q.K {
		entries = entries[:q.K]
	}
	return entries, nil
}

func (f *fakeBackend) FindByField(
	_ context.Context, coll, fieldName string, values []string, _ int,
) ([]db.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Entry
	for _, e := range f.entries[coll] {
		for _, v := range values {
			if e.Fields[fieldName] == v {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func entries(coll string, distances ...float64) []db.Entry {
	out := make([]db.Entry, len(distances))
	for i, d := range distances {
		out[i] = db.Entry{
			ID:       coll + "-" + strings.Repeat("x", i+1),
			Fields:   map[string]string{"source_id": coll},
			Distance: d,
			Seq:      int64(i),
		}
	}
	return out
}

func noRetry() retry.Policy { return retry.Policy{Attempts: 1} }

func newFakeService(t *testing.T) (*Service, *fakeBackend, *textEmbedder) {
	t.Helper()
	backend := newFakeBackend()
	emb := &textEmbedder{}
	svc := New(backend, collection.NewRegistry(testDim), emb, nil).WithRetry(noRetry())
	return svc, backend, emb
}

// newSQLiteService wires a real embedded backend with every collection created.
func newSQLiteService(t *testing.T) (*Service, *sqlite.Store, *textEmbedder) {
	t.Helper()
	backend, err := sqlite.NewStore(sqlite.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("sqlite.NewStore: %v", err)
	}
	t.Cleanup(backend.Close)

	reg := collection.NewRegistry(testDim)
	for _, typ := range collection.AllTypes() {
		schema, _ := reg.Resolve(typ)
		err := backend.CreateCollection(context.Background(), db.CollectionSpec{
			Name:      schema.PhysicalName(collection.DefaultPrefix),
			Fields:    schema.FieldNames(),
			Dimension: testDim,
		})
		if err != nil {
			t.Fatalf("CreateCollection: %v", err)
		}
	}

	emb := &textEmbedder{}
	return New(backend, reg, emb, nil).WithRetry(noRetry()), backend, emb
}

func insert(t *testing.T, backend *sqlite.Store, typ collection.Type, text string, fields map[string]string) {
	t.Helper()
	if err := backend.Insert(context.Background(), collection.DefaultPrefix+string(typ), []db.Row{
		{Fields: fields, Vector: vectorFor(text)},
	}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func retryPolicy(attempts int) retry.Policy {
	return retry.Policy{Attempts: attempts, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}
