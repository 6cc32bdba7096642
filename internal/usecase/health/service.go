// Package health aggregates readiness of the vector database, embedding provider and collections.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means the database answers but something else does not.
	Degraded Status = "degraded"
	// Unhealthy means the database is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

const (
	checkDatabase    = "database"
	checkEmbedding   = "embedding"
	checkCollections = "collections"
)

// DefaultTimeout bounds each individual check.
const DefaultTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status  Status                 `json:"status"`
	Checks  map[string]CheckResult `json:"checks"`
	Details map[string]string      `json:"details,omitempty"`
}

// Service coordinates health checks.
type Service struct {
	db          Pinger
	embedding   EmbeddingChecker
	collections CollectionChecker
	names       []string
	timeout     time.Duration
}

// New creates a Service. embedding can be nil.
func New(db Pinger, embedding EmbeddingChecker) *Service {
	return &Service{db: db, embedding: embedding, timeout: DefaultTimeout}
}

// WithCollections also checks that every named physical collection exists.
func (s *Service) WithCollections(c CollectionChecker, names ...string) *Service {
	s.collections = c
	s.names = names
	return s
}

// WithTimeout sets the per-check timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Checks: make(map[string]CheckResult), Details: make(map[string]string)}
	var mu sync.Mutex
	set := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			r.Checks[name] = CheckError
			r.Details[name] = err.Error()
			return
		}
		r.Checks[name] = CheckOK
	}

	var g errgroup.Group
	g.Go(func() error {
		set(checkDatabase, s.run(ctx, s.db.Ping))
		return nil
	})
	if s.embedding != nil {
		g.Go(func() error {
			set(checkEmbedding, s.run(ctx, s.embedding.HealthCheck))
			return nil
		})
	}
	if s.collections != nil && len(s.names) > 0 {
		g.Go(func() error {
			set(checkCollections, s.run(ctx, s.missingCollections))
			return nil
		})
	}
	_ = g.Wait()

	r.Status = Healthy
	for _, v := range r.Checks {
		if v == CheckError {
			r.Status = Degraded
			break
		}
	}
	if r.Checks[checkDatabase] == CheckError {
		r.Status = Unhealthy
	}
	if len(r.Details) == 0 {
		r.Details = nil
	}
	return r
}

func (s *Service) run(ctx context.Context, check func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}

func (s *Service) missingCollections(ctx context.Context) error {
	var missing []string
	for _, name := range s.names {
		ok, err := s.collections.CollectionExists(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing collections: %v", missing)
	}
	return nil
}
