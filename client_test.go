package graphvec

import (
	"context"
	"errors"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero dimension", []Option{WithDimension(-1)}},
		{"redis without addrs", []Option{WithRedis("")}},
		{"qdrant without host", []Option{WithQdrant("", 6334, "", false)}},
		{"kv cache on sqlite", []Option{WithCache("kv", 0)}},
		{"unknown cache", []Option{WithCache("disk", 0)}},
		{"empty sqlite path", []Option{WithSQLite("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNotConnected(t *testing.T) {
	c, err := New(WithDimension(testDim), WithEmbedder(&hashEmbedder{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if c.Connected() {
		t.Fatal("new client must not be connected")
	}
	if _, err := c.Insert(ctx, TextUnit, NewRecord(map[string]string{"source_id": "a", "text": "b"})); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Insert: expected ErrNotConnected, got %v", err)
	}
	if _, err := c.SearchByText(ctx, TextUnit, "q", 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SearchByText: expected ErrNotConnected, got %v", err)
	}
	if _, err := c.SearchByEmbeddings(ctx, TextUnit, [][]float32{make([]float32, testDim)}, 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SearchByEmbeddings: expected ErrNotConnected, got %v", err)
	}
	if _, err := c.HybridSearch(ctx, nil, "q", 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HybridSearch: expected ErrNotConnected, got %v", err)
	}
	if _, err := c.Stats(ctx); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Stats: expected ErrNotConnected, got %v", err)
	}

	if _, err := c.Embed(ctx, "no connection needed"); err != nil {
		t.Errorf("Embed without connection: %v", err)
	}
}

func TestConnectClose(t *testing.T) {
	c, _ := newConnectedClient(t)
	ctx := context.Background()

	if !c.Connected() {
		t.Fatal("expected connected")
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second Connect should be a no-op: %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	c.Close()
	if c.Connected() {
		t.Fatal("expected disconnected after Close")
	}
	if _, err := c.QueryBySourceID(ctx, TextUnit, "x", 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after Close, got %v", err)
	}
	c.Close()
}

func TestInitCollections(t *testing.T) {
	c, _ := newConnectedClient(t)

	created, err := c.InitCollections(context.Background())
	if err != nil {
		t.Fatalf("InitCollections: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("collections already exist, created %v", created)
	}

	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != len(AllCollectionTypes()) {
		t.Errorf("got %d stats", len(stats))
	}
	if stats[0].Name != "graphrag_document" {
		t.Errorf("physical name = %q", stats[0].Name)
	}
}

func TestRoundTrip(t *testing.T) {
	c, _ := newConnectedClient(t)
	ctx := context.Background()

	n, err := c.Insert(ctx, TextUnit, NewRecord(map[string]string{"source_id": "doc_123", "text": "hello world"}))
	if err != nil || n != 1 {
		t.Fatalf("Insert = %d, %v", n, err)
	}

	hits, err := c.SearchByText(ctx, TextUnit, "hello world", 1)
	if err != nil {
		t.Fatalf("SearchByText: %v", err)
	}
	if len(hits) != 1 || hits[0].SourceID() != "doc_123" || hits[0].Distance != 0 {
		t.Fatalf("hits = %+v", hits)
	}

	byID, err := c.QueryBySourceID(ctx, TextUnit, "doc_123", 10)
	if err != nil || len(byID) != 1 || byID[0].Fields["text"] != "hello world" {
		t.Errorf("QueryBySourceID = %+v, %v", byID, err)
	}
}

func TestComposedEmbeddingText(t *testing.T) {
	c, emb := newConnectedClient(t)

	_, err := c.Insert(context.Background(), EntityDescription, NewRecord(map[string]string{
		"source_id":   "e1",
		"title":       "AI",
		"description": "systems that mimic cognition",
	}))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := emb.last(); got != "AI:systems that mimic cognition" {
		t.Errorf("embedded %q", got)
	}
}

func TestEmbed_Cached(t *testing.T) {
	c, emb := newConnectedClient(t)
	ctx := context.Background()

	first, err := c.Embed(ctx, "graph")
	if err != nil {
		t.Fatal(err)
	}
	calls := emb.calls()
	second, err := c.Embed(ctx, "graph")
	if err != nil {
		t.Fatal(err)
	}
	if emb.calls() != calls {
		t.Error("second Embed must be served from cache")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}

	batch, err := c.EmbedBatch(ctx, []string{"graph", "vector"})
	if err != nil || len(batch) != 2 {
		t.Fatalf("EmbedBatch = %v, %v", batch, err)
	}
	if emb.calls() != calls+1 {
		t.Errorf("only the uncached text should be embedded, calls=%d", emb.calls()-calls)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newConnectedClient(t)
	ctx := context.Background()

	recs := []Record{
		NewRecord(map[string]string{"source_id": "1", "title": "AI"}),
		NewRecord(map[string]string{"source_id": "2", "title": "AI"}),
		NewRecord(map[string]string{"source_id": "3", "title": "ML"}),
	}
	if n, err := c.BatchInsert(ctx, EntityTitle, recs); err != nil || n != 3 {
		t.Fatalf("BatchInsert = %d, %v", n, err)
	}

	n, err := c.Delete(ctx, EntityTitle, "title", "AI")
	if err != nil || n != 2 {
		t.Fatalf("Delete = %d, %v", n, err)
	}
	if n, _ := c.Delete(ctx, EntityTitle, "title", "AI"); n != 0 {
		t.Errorf("second Delete = %d", n)
	}
	if _, err := c.Delete(ctx, EntityTitle, "summary", "x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}

	n, err = c.Clear(ctx, EntityTitle)
	if err != nil || n != 1 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
}

func TestSearchMultipleCollections(t *testing.T) {
	c, _ := newConnectedClient(t)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c", "d"} {
		if _, err := c.Insert(ctx, TextUnit, NewRecord(map[string]string{"source_id": text, "text": text})); err != nil {
			t.Fatal(err)
		}
	}

	out, err := c.SearchMultipleCollections(ctx, []CollectionType{Document, TextUnit}, "a", 3)
	if err != nil {
		t.Fatalf("SearchMultipleCollections: %v", err)
	}
	if len(out) != 2 || len(out[Document].Hits) != 0 || len(out[TextUnit].Hits) != 3 {
		t.Fatalf("out = %+v", out)
	}

	merged, err := c.HybridSearch(ctx, []CollectionType{Document, TextUnit}, "a", 2)
	if err != nil || len(merged.Hits) != 2 || merged.Hits[0].SourceID() != "a" || merged.Partial() {
		t.Errorf("HybridSearch = %+v, %v", merged, err)
	}
}

func TestSearchByEmbeddings(t *testing.T) {
	c, _ := newConnectedClient(t)
	ctx := context.Background()

	for _, text := range []string{"a", "b"} {
		if _, err := c.Insert(ctx, TextUnit, NewRecord(map[string]string{"source_id": text, "text": text})); err != nil {
			t.Fatal(err)
		}
	}
	qa, err := c.Embed(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	qb, err := c.Embed(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}

	got, err := c.SearchByEmbeddings(ctx, TextUnit, [][]float32{qb, qa}, 1)
	if err != nil {
		t.Fatalf("SearchByEmbeddings: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 1 || len(got[1]) != 1 {
		t.Fatalf("SearchByEmbeddings = %+v", got)
	}
	if got[0][0].SourceID() != "b" || got[1][0].SourceID() != "a" {
		t.Errorf("SearchByEmbeddings = %+v", got)
	}
}

func TestResetCollections(t *testing.T) {
	c, _ := newConnectedClient(t)
	ctx := context.Background()

	if _, err := c.Insert(ctx, Document, NewRecord(map[string]string{"source_id": "d", "text": "t"})); err != nil {
		t.Fatal(err)
	}
	if err := c.ResetCollections(ctx, Document); err != nil {
		t.Fatalf("ResetCollections: %v", err)
	}
	stats, err := c.Stats(ctx, Document)
	if err != nil || stats[0].Count != 0 {
		t.Errorf("stats after reset = %+v, %v", stats, err)
	}
}

func TestNoEmbedderConfigured(t *testing.T) {
	c, err := New(WithDimension(testDim), WithRetry(1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, ErrEmbeddingService) {
		t.Errorf("expected ErrEmbeddingService, got %v", err)
	}
}

func TestEmbed_WrongDimensionFailsForEveryCacheKind(t *testing.T) {
	for _, kind := range []string{"memory", "lru", "none"} {
		t.Run(kind, func(t *testing.T) {
			c, err := New(WithDimension(testDim), WithEmbedder(shortEmbedder{}), WithCache(kind, 16), WithRetry(1, 0, 0))
			if err != nil {
				t.Fatal(err)
			}
			ctx := context.Background()

			if vec, err := c.Embed(ctx, "x"); !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("Embed = len %d, %v; want ErrDimensionMismatch", len(vec), err)
			}
			if vecs, err := c.EmbedBatch(ctx, []string{"a", "b"}); !errors.Is(err, ErrDimensionMismatch) {
				t.Errorf("EmbedBatch = %d vectors, %v; want ErrDimensionMismatch", len(vecs), err)
			}
		})
	}
}
