// Package valkey connects the hash-backed store to valkey-search.
package valkey

import (
	"fmt"

	"github.com/kailas-cloud/graphvec/internal/db/redis"
)

// Config holds connection parameters for a Valkey store.
type Config struct {
	Addrs     []string
	Username  string
	Password  string
	KeyPrefix string
}

// NewStore creates a store that uses only the commands valkey-search supports.
func NewStore(cfg Config) (*redis.Store, error) {
	s, err := redis.NewStore(redis.Config{
		Addrs:     cfg.Addrs,
		Username:  cfg.Username,
		Password:  cfg.Password,
		KeyPrefix: cfg.KeyPrefix,
		Dialect:   redis.DialectValkey,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey: %w", err)
	}
	return s, nil
}
