package graphvec

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/config"
)

// FromConfig translates a loaded configuration file into client options.
// Options passed after these override them.
func FromConfig(cfg config.Config, logger *zap.Logger) []Option {
	opts := []Option{
		WithDimension(cfg.Embedding.Dimensions),
		WithCollectionPrefix(cfg.Collections.Prefix),
		WithCache(cfg.Cache.Kind, cfg.Cache.Size),
		WithEmbedTimeout(cfg.EmbeddingTimeout()),
		WithQueryTimeout(cfg.QueryTimeout()),
		WithReadinessTimeout(time.Duration(cfg.Database.ReadinessTimeout) * time.Second),
		WithRetry(cfg.Embedding.Retries, 0, 0),
		WithAllOrNothing(cfg.Query.AllOrNothing),
		WithLogger(logger),
	}

	d := cfg.Database
	switch d.Driver {
	case config.DriverRedis:
		opts = append(opts, WithRedis(d.Password, d.Addrs...), WithKeyPrefix(d.KeyPrefix))
	case config.DriverValkey:
		opts = append(opts, WithValkey(d.Password, d.Addrs...), WithKeyPrefix(d.KeyPrefix))
	case config.DriverQdrant:
		opts = append(opts, WithQdrant(d.Qdrant.Host, d.Qdrant.Port, d.Qdrant.APIKey, d.Qdrant.UseTLS))
	case config.DriverMemory:
		opts = append(opts, WithMemory(d.Path))
	default:
		opts = append(opts, WithSQLite(d.Path))
	}

	e := cfg.Embedding
	if e.APIKey != "" || e.BaseURL != "" {
		opts = append(opts,
			WithOpenAI(e.APIKey, e.BaseURL, e.Model),
			WithEmbeddingBatchSize(e.BatchSize),
			withProvider(e.Provider),
		)
	}
	return opts
}

func withProvider(name string) Option {
	return optionFunc(func(c *clientConfig) {
		if c.openAI != nil {
			c.openAI.provider = name
		}
	})
}
