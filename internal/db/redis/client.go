// Package redis stores collections as hashes indexed by Redis Query Engine or valkey-search.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/graphvec/internal/db"
)

// Compile-time checks: Store implements db.VectorStore and db.KVStore.
var (
	_ db.VectorStore = (*Store)(nil)
	_ db.KVStore     = (*Store)(nil)
)

// Dialect selects the search module flavour behind the connection.
type Dialect int

const (
	// DialectRedis targets Redis 8+ with the built-in query engine.
	DialectRedis Dialect = iota
	// DialectValkey targets valkey-search, which only answers KNN queries from FT.SEARCH;
	// scalar lookups fall back to SCAN.
	DialectValkey
)

const defaultKeyPrefix = "graphvec:"

// Config holds connection parameters.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	Dialect   Dialect
}

// Store implements db.VectorStore via rueidis.
type Store struct {
	client  rueidis.Client
	prefix  string
	dialect Dialect
}

// NewStore creates a store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newStore(client, cfg.KeyPrefix, cfg.Dialect), nil
}

func newStore(c rueidis.Client, prefix string, dialect Dialect) *Store {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Store{client: c, prefix: prefix, dialect: dialect}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForPing(ctx, s, timeout)
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

func (s *Store) indexName(collection string) string { return s.prefix + "idx:" + collection }
func (s *Store) docPrefix(collection string) string { return s.prefix + collection + ":" }
func (s *Store) seqKey(collection string) string    { return s.prefix + "seq:" + collection }

// isRedisErr checks if err is a server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
