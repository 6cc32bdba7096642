package health

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err   error
	block bool
}

func (m *mockEmbeddingChecker) HealthCheck(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

type mockCollections map[string]bool

func (m mockCollections) CollectionExists(_ context.Context, name string) (bool, error) {
	return m[name], nil
}

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockPinger{}, &mockEmbeddingChecker{}).
		WithCollections(mockCollections{"gv_document": true}, "gv_document")
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{"database", "embedding", "collections"} {
		if r.Checks[name] != CheckOK {
			t.Errorf("%s = %q", name, r.Checks[name])
		}
	}
	if r.Details != nil {
		t.Errorf("details should be empty, got %v", r.Details)
	}
}

func TestCheck_DBErrorIsUnhealthy(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("conn refused")}, &mockEmbeddingChecker{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Details["database"] != "conn refused" {
		t.Errorf("details = %v", r.Details)
	}
}

func TestCheck_EmbeddingTimeoutIsDegraded(t *testing.T) {
	svc := New(&mockPinger{}, &mockEmbeddingChecker{block: true}).WithTimeout(10 * time.Millisecond)
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("embedding = %q", r.Checks["embedding"])
	}
}

func TestCheck_MissingCollections(t *testing.T) {
	svc := New(&mockPinger{}, nil).
		WithCollections(mockCollections{"gv_document": true}, "gv_document", "gv_text_unit")
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if !strings.Contains(r.Details["collections"], "gv_text_unit") {
		t.Errorf("details = %v", r.Details)
	}
	if _, ok := r.Checks["embedding"]; ok {
		t.Error("nil embedding checker must be skipped")
	}
}
