package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy is the single retry abstraction shared by the bar fetcher and the
// storage write paths. An attempt is retried only when Retryable says so and
// attempts remain; the backoff sleep is context-aware.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(error) bool
}

// Do runs fn until it succeeds, exhausts MaxAttempts, or hits a non-retryable
// error. The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if p.Backoff != nil {
			select {
			case <-time.After(p.Backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

// Linear is base*attempt backoff.
func Linear(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Jittered spreads concurrent retries (local storage lock contention) by
// adding up to base/2 of random slack on top of linear growth.
func Jittered(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base*time.Duration(attempt) + time.Duration(rand.Int63n(int64(base/2)+1))
	}
}
