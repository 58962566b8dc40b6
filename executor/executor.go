package executor

import (
	"context"
	"errors"
	"time"

	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"

	"plant-diagnosis-pipeline/metrics"
	"plant-diagnosis-pipeline/models"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

// Executor wraps any provider call with bounded retries, exponential
// backoff with jitter and a hard per-attempt timeout. Provider-agnostic:
// retry policy comes from the ProviderConfig, retryability from the
// error itself.
type Executor struct{}

func New() *Executor {
	return &Executor{}
}

// Execute runs fn up to cfg.MaxAttempts times. The delay before attempt
// k is cfg.RetryBaseDelay x 2^(k-1), jittered. Each attempt gets its own
// cfg.Timeout deadline. Non-retryable errors surface immediately without
// consuming retry budget; parent ctx cancellation aborts the wait.
func (e *Executor) Execute(ctx context.Context, cfg models.ProviderConfig,
	fn func(ctx context.Context) (*models.ProviderResult, error)) (*models.ProviderResult, error) {

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	attempt := 0
	operation := func() (*models.ProviderResult, error) {
		attempt++
		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}

		result, err := fn(attemptCtx)
		if err == nil {
			return result, nil
		}

		var pe *models.ProviderError
		if errors.As(err, &pe) && !pe.Retryable {
			return nil, backoff.Permanent(err)
		}
		// Parent cancellation must not be retried into.
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		log.Warnf("Provider %s attempt %d/%d failed: %v", cfg.Name, attempt, maxAttempts, err)
		metrics.ProviderRetriesTotal.WithLabelValues(cfg.Name).Inc()
		return nil, err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = baseDelay
	expBackoff.Multiplier = 2
	expBackoff.MaxInterval = 30 * time.Second
	expBackoff.MaxElapsedTime = 0 // attempts bound the retry budget, not wall time

	policy := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(maxAttempts-1)), ctx)

	return backoff.RetryWithData(operation, policy)
}
