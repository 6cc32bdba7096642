// Package graphvec stores and searches GraphRAG artifacts in typed vector collections.
package graphvec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/db"
	dbChromem "github.com/kailas-cloud/graphvec/internal/db/chromem"
	dbQdrant "github.com/kailas-cloud/graphvec/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/graphvec/internal/db/redis"
	dbSQLite "github.com/kailas-cloud/graphvec/internal/db/sqlite"
	dbValkey "github.com/kailas-cloud/graphvec/internal/db/valkey"
	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/domain/collection"
	"github.com/kailas-cloud/graphvec/internal/metrics"
	"github.com/kailas-cloud/graphvec/internal/repository/embcache"
	openaiEmb "github.com/kailas-cloud/graphvec/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/graphvec/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/graphvec/internal/usecase/health"
	"github.com/kailas-cloud/graphvec/internal/usecase/importer"
	queryuc "github.com/kailas-cloud/graphvec/internal/usecase/query"
	storeuc "github.com/kailas-cloud/graphvec/internal/usecase/store"
)

// Client is the graphvec entry point. Build it with New, then Connect before storing or
// searching. A Client is safe for concurrent use.
type Client struct {
	cfg      *clientConfig
	registry *collection.Registry
	logger   *zap.Logger

	mu       sync.RWMutex
	embedder domain.FullEmbedder
	checker  domain.HealthChecker
	sess     *session
}

// session holds everything that lives between Connect and Close.
type session struct {
	backend  db.VectorStore
	store    *storeuc.Service
	query    *queryuc.Service
	importer *importer.Service
	health   *healthuc.Service
}

// New creates a Client. It does not touch the network; call Connect.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	metrics.Register()

	c := &Client{
		cfg:      cfg,
		registry: collection.NewRegistry(cfg.dimension),
		logger:   cfg.logger,
	}
	if cfg.cacheKind != cacheKV {
		emb, err := c.buildEmbedder(nil)
		if err != nil {
			return nil, err
		}
		c.embedder = emb
	}
	return c, nil
}

func (cfg *clientConfig) validate() error {
	if cfg.dimension <= 0 {
		return fmt.Errorf("graphvec: dimension must be positive, got %d", cfg.dimension)
	}
	switch cfg.driver {
	case driverSQLite:
		if cfg.path == "" {
			return errors.New("graphvec: sqlite path required")
		}
	case driverRedis, driverValkey:
		if len(cfg.addrs) == 0 {
			return fmt.Errorf("graphvec: %s address required", cfg.driver)
		}
	case driverQdrant:
		if cfg.qdrantHost == "" {
			return errors.New("graphvec: qdrant host required")
		}
	case driverMemory:
	default:
		return fmt.Errorf("graphvec: unknown driver %q", cfg.driver)
	}
	switch cfg.cacheKind {
	case cacheMemory, cacheLRU, cacheNone:
	case cacheKV:
		if cfg.driver != driverRedis && cfg.driver != driverValkey {
			return fmt.Errorf("graphvec: kv cache needs a redis or valkey backend, got %q", cfg.driver)
		}
	default:
		return fmt.Errorf("graphvec: unknown cache kind %q", cfg.cacheKind)
	}
	return nil
}

// Connect opens the backend, waits until it answers and wires the services.
// Calling Connect on a connected Client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != nil {
		return nil
	}

	backend, err := openBackend(c.cfg)
	if err != nil {
		return err
	}
	if err := backend.WaitForReady(ctx, c.cfg.readinessTimeout); err != nil {
		backend.Close()
		return fmt.Errorf("graphvec: database not ready: %w: %w", domain.ErrVectorService, err)
	}

	if c.cfg.cacheKind == cacheKV {
		kv, ok := backend.(db.KVStore)
		if !ok {
			backend.Close()
			return fmt.Errorf("graphvec: %s backend has no key-value support", c.cfg.driver)
		}
		emb, err := c.buildEmbedder(kv)
		if err != nil {
			backend.Close()
			return err
		}
		c.embedder = emb
	}

	c.sess = c.wire(backend)
	c.logger.Info("Connected to vector database",
		zap.String("driver", c.cfg.driver),
		zap.Int("dimension", c.cfg.dimension),
		zap.String("prefix", c.cfg.prefix),
	)
	return nil
}

// Close releases the backend. Later store and query calls fail with ErrNotConnected.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return
	}
	c.sess.backend.Close()
	c.sess = nil
	if c.cfg.cacheKind == cacheKV {
		c.embedder = nil
	}
}

// Connected reports whether Connect succeeded and Close has not been called since.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess != nil
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	s, err := c.session()
	if err != nil {
		return err
	}
	if err := s.backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", domain.ErrVectorService, err)
	}
	return nil
}

// Health reports the state of the database, the embedding provider and the collections.
func (c *Client) Health(ctx context.Context) (healthuc.Report, error) {
	s, err := c.session()
	if err != nil {
		return healthuc.Report{}, err
	}
	return s.health.Check(ctx), nil
}

func (c *Client) session() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil {
		return nil, domain.ErrNotConnected
	}
	return c.sess, nil
}

func (c *Client) currentEmbedder() (domain.FullEmbedder, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.embedder == nil {
		return nil, domain.ErrNotConnected
	}
	return c.embedder, nil
}

func (c *Client) wire(backend db.VectorStore) *session {
	emb := c.embedder

	store := storeuc.New(backend, c.registry, emb, c.logger).
		WithPrefix(c.cfg.prefix).
		WithRetry(c.cfg.retry)
	query := queryuc.New(backend, c.registry, emb, c.logger).
		WithPrefix(c.cfg.prefix).
		WithTimeout(c.cfg.queryTimeout).
		WithRetry(c.cfg.retry)

	names := make([]string, 0, len(collection.AllTypes()))
	for _, t := range collection.AllTypes() {
		names = append(names, store.Name(t))
	}
	health := healthuc.New(backend, embeddingHealth{c}).WithCollections(backend, names...)

	return &session{
		backend:  backend,
		store:    store,
		query:    query,
		importer: importer.New(store, c.registry, c.logger),
		health:   health,
	}
}

func openBackend(cfg *clientConfig) (db.VectorStore, error) {
	switch cfg.driver {
	case driverSQLite:
		s, err := dbSQLite.NewStore(dbSQLite.Config{Path: cfg.path})
		if err != nil {
			return nil, fmt.Errorf("graphvec: create sqlite store: %w", err)
		}
		return s, nil
	case driverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:     cfg.addrs,
			Password:  cfg.password,
			KeyPrefix: cfg.keyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("graphvec: create redis store: %w", err)
		}
		return s, nil
	case driverValkey:
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:     cfg.addrs,
			Password:  cfg.password,
			KeyPrefix: cfg.keyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("graphvec: create valkey store: %w", err)
		}
		return s, nil
	case driverQdrant:
		s, err := dbQdrant.NewStore(dbQdrant.Config{
			Host:   cfg.qdrantHost,
			Port:   cfg.qdrantPort,
			APIKey: cfg.qdrantKey,
			UseTLS: cfg.qdrantTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("graphvec: create qdrant store: %w", err)
		}
		return s, nil
	case driverMemory:
		s, err := dbChromem.NewStore(dbChromem.Config{Path: cfg.path, Dimension: cfg.dimension})
		if err != nil {
			return nil, fmt.Errorf("graphvec: create memory store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("graphvec: unknown driver %q", cfg.driver)
	}
}

// buildEmbedder assembles the decorator chain: provider -> Retrying -> Instrumented ->
// DimensionChecked -> Cached.
// kv is only used for the kv cache kind.
func (c *Client) buildEmbedder(kv db.KVStore) (domain.FullEmbedder, error) {
	cfg := c.cfg
	provider, model := "custom", "custom"

	var base domain.Embedder
	switch {
	case cfg.embedder != nil:
		base = cfg.embedder
	case cfg.openAI != nil:
		oe := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.openAI.apiKey,
			BaseURL:    cfg.openAI.baseURL,
			Model:      cfg.openAI.model,
			Dimensions: cfg.dimension,
			BatchSize:  cfg.openAI.batchSize,
			Provider:   cfg.openAI.provider,
			Logger:     c.logger,
		})
		base = oe
		provider, model = oe.Provider(), oe.Model()
	default:
		base = noopEmbedder{}
		provider, model = "none", "none"
	}
	c.checker, _ = base.(domain.HealthChecker)

	policy := cfg.retry
	policy.AttemptTimeout = cfg.embedTimeout
	var emb domain.Embedder = embeddinguc.NewRetryingEmbedder(base, policy, provider, c.logger)
	emb = embeddinguc.NewInstrumentedEmbedder(emb, provider, model, c.logger)
	checked := embeddinguc.NewDimensionCheckedEmbedder(emb, cfg.dimension)

	var cache embcache.Cache
	switch cfg.cacheKind {
	case cacheNone:
		return checked, nil
	case cacheLRU:
		lru, err := embcache.NewLRUCache(cfg.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("graphvec: %w", err)
		}
		cache = lru
	case cacheKV:
		cache = embcache.NewKVCache(kv, c.logger)
	default:
		cache = embcache.NewMemoryCache()
	}
	return embcache.New(checked, cache, cfg.dimension, metrics.EmbeddingCacheTotal, c.logger), nil
}

// embeddingHealth checks the provider when it supports health checks.
type embeddingHealth struct{ c *Client }

func (h embeddingHealth) HealthCheck(ctx context.Context) error {
	h.c.mu.RLock()
	checker := h.c.checker
	h.c.mu.RUnlock()
	if checker == nil {
		return nil
	}
	return checker.HealthCheck(ctx)
}

// noopEmbedder fails every call; used when no provider is configured.
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"graphvec: embedder not configured (use WithEmbedder or WithOpenAI): %w", domain.ErrEmbeddingService,
	)
}
