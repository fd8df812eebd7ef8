package marketdata

import (
	"context"
	"time"

	"github.com/tradeguru/engine/internal/observ"
	"github.com/tradeguru/engine/internal/retry"
)

// RetryingSource wraps a BarSource with the shared retry policy: linear
// backoff, bounded attempts, RateLimited/Transient only. Each retry delays
// its own unit of work, never a sibling.
type RetryingSource struct {
	src    BarSource
	policy retry.Policy
}

func NewRetryingSource(src BarSource, maxAttempts int, backoffBase time.Duration) *RetryingSource {
	return &RetryingSource{
		src: src,
		policy: retry.Policy{
			MaxAttempts: maxAttempts,
			Backoff:     retry.Linear(backoffBase),
			Retryable:   Retryable,
		},
	}
}

func (r *RetryingSource) Fetch(ctx context.Context, symbol string, window Window) ([]Bar, error) {
	var bars []Bar
	attempt := 0
	err := r.policy.Do(ctx, func() error {
		attempt++
		if attempt > 1 {
			observ.IncCounter("fetch_retries_total", map[string]string{"symbol": symbol})
		}
		var ferr error
		bars, ferr = r.src.Fetch(ctx, symbol, window)
		return ferr
	})
	if err != nil {
		observ.IncCounter("fetch_failures_total", map[string]string{"kind": string(KindOf(err))})
		return nil, err
	}
	return bars, nil
}
