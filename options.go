package graphvec

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/domain/collection"
	"github.com/kailas-cloud/graphvec/internal/retry"
)

const (
	driverSQLite = "sqlite"
	driverRedis  = "redis"
	driverValkey = "valkey"
	driverQdrant = "qdrant"
	driverMemory = "memory"
)

const (
	cacheMemory = "memory"
	cacheLRU    = "lru"
	cacheKV     = "kv"
	cacheNone   = "none"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultEmbedTimeout     = 30 * time.Second
	defaultQueryTimeout     = 10 * time.Second
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver     string
	addrs      []string
	password   string
	keyPrefix  string
	path       string
	qdrantHost string
	qdrantPort int
	qdrantKey  string
	qdrantTLS  bool

	embedder  Embedder
	openAI    *openAIConfig
	cacheKind string
	cacheSize int
	dimension int

	prefix           string
	embedTimeout     time.Duration
	queryTimeout     time.Duration
	readinessTimeout time.Duration
	retry            retry.Policy
	allOrNothing     bool

	logger *zap.Logger
}

type openAIConfig struct {
	apiKey    string
	baseURL   string
	model     string
	batchSize int
	provider  string
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		driver:           driverSQLite,
		path:             ":memory:",
		cacheKind:        cacheMemory,
		dimension:        collection.DefaultDimension,
		prefix:           collection.DefaultPrefix,
		embedTimeout:     defaultEmbedTimeout,
		queryTimeout:     defaultQueryTimeout,
		readinessTimeout: defaultReadinessTimeout,
		retry:            retry.DefaultPolicy(),
		logger:           zap.NewNop(),
	}
}

// WithSQLite stores collections in an embedded SQLite database at path (":memory:" allowed).
// This is the default backend.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverSQLite
		c.path = path
	})
}

// WithRedis connects to Redis 8 (or Redis Stack) with the query engine.
func WithRedis(password string, addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = addrs
		c.password = password
	})
}

// WithValkey connects to Valkey with the valkey-search module.
func WithValkey(password string, addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverValkey
		c.addrs = addrs
		c.password = password
	})
}

// WithKeyPrefix namespaces Redis/Valkey keys and indexes.
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithQdrant connects to Qdrant over gRPC.
func WithQdrant(host string, port int, apiKey string, useTLS bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverQdrant
		c.qdrantHost = host
		c.qdrantPort = port
		c.qdrantKey = apiKey
		c.qdrantTLS = useTLS
	})
}

// WithMemory keeps collections in process with chromem-go. A non-empty dir persists them.
func WithMemory(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverMemory
		c.path = dir
	})
}

// WithEmbedder sets a custom embedding provider. It takes precedence over WithOpenAI.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithOpenAI uses an OpenAI-compatible /embeddings endpoint. Empty baseURL and model
// select DashScope compatible mode and text-embedding-v3.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAI = &openAIConfig{apiKey: apiKey, baseURL: baseURL, model: model}
	})
}

// WithEmbeddingBatchSize caps the number of texts per embedding request.
func WithEmbeddingBatchSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		if c.openAI == nil {
			c.openAI = &openAIConfig{}
		}
		c.openAI.batchSize = n
	})
}

// WithCache selects the embedding cache: "memory" (default, unbounded), "lru" (bounded by
// size), "kv" (stored in the Redis/Valkey backend) or "none".
func WithCache(kind string, size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheKind = kind
		c.cacheSize = size
	})
}

// WithDimension sets the vector length of every collection. Defaults to 1024.
func WithDimension(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimension = dim
	})
}

// WithCollectionPrefix sets the physical collection name prefix. Defaults to "graphrag_".
func WithCollectionPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.prefix = prefix
	})
}

// WithEmbedTimeout bounds each embedding request attempt.
func WithEmbedTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedTimeout = d
	})
}

// WithQueryTimeout bounds each collection's search in a multi-collection call.
func WithQueryTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryTimeout = d
	})
}

// WithReadinessTimeout bounds how long Connect waits for the backend.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readinessTimeout = d
	})
}

// WithRetry sets the number of attempts and backoff bounds for transient failures.
func WithRetry(attempts int, initial, maxInterval time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.retry = retry.Policy{Attempts: attempts, InitialInterval: initial, MaxInterval: maxInterval}
	})
}

// WithAllOrNothing makes multi-collection searches fail on the first collection error.
func WithAllOrNothing(enabled bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.allOrNothing = enabled
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	})
}
