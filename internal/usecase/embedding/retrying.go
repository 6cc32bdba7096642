package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/domain"
	"github.com/kailas-cloud/graphvec/internal/metrics"
	"github.com/kailas-cloud/graphvec/internal/retry"
)

// RetryingEmbedder retries transient provider failures. Each attempt gets its own
// timeout from the policy. Errors that survive the loop wrap domain.ErrEmbeddingService.
type RetryingEmbedder struct {
	inner    domain.Embedder
	batch    domain.BatchEmbedder
	policy   retry.Policy
	provider string
	logger   *zap.Logger
}

// NewRetryingEmbedder wraps inner with the given retry policy.
func NewRetryingEmbedder(inner domain.Embedder, policy retry.Policy, provider string, logger *zap.Logger) *RetryingEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingEmbedder{
		inner:    inner,
		batch:    domain.BatchOf(inner),
		policy:   policy,
		provider: provider,
		logger:   logger,
	}
}

// Embed calls the inner embedder until it succeeds or the policy gives up.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var out domain.EmbeddingResult
	attempts := 0
	err := retry.Do(ctx, r.policy, r.logger, "embed", func(ctx context.Context) error {
		attempts++
		res, err := r.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	r.countRetries(attempts)
	if err != nil {
		return domain.EmbeddingResult{}, serviceError(err)
	}
	return out, nil
}

// BatchEmbed retries the whole batch; partial results are never returned.
func (r *RetryingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	attempts := 0
	err := retry.Do(ctx, r.policy, r.logger, "batch_embed", func(ctx context.Context) error {
		attempts++
		res, err := r.batch.BatchEmbed(ctx, texts)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	r.countRetries(attempts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, serviceError(err)
	}
	return out, nil
}

func (r *RetryingEmbedder) countRetries(attempts int) {
	if attempts > 1 {
		metrics.EmbeddingRetriesTotal.WithLabelValues(r.provider).Add(float64(attempts - 1))
	}
}

// serviceError keeps input errors and caller cancellation as they are and makes sure
// everything else matches domain.ErrEmbeddingService.
func serviceError(err error) error {
	if domain.IsInputError(err) || errors.Is(err, domain.ErrEmbeddingService) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
}

func ctxErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
