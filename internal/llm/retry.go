package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RetryProvider decorates a Provider with a bounded number of retries. Only
// transient failures (rate limits, transport errors) are retried; empty
// responses retry once since they usually indicate a flaky generation, and
// context cancellation never retries.
type RetryProvider struct {
	inner    Provider
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

// WithRetries wraps p with the given attempt limit.
func WithRetries(p Provider, attempts int, backoff time.Duration, logger *zap.Logger) *RetryProvider {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryProvider{inner: p, attempts: attempts, backoff: backoff, log: logger}
}

func (r *RetryProvider) Name() string { return r.inner.Name() }

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	delay := r.backoff
	for attempt := 1; attempt <= r.attempts; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}
		if attempt == r.attempts {
			break
		}
		r.log.Warn("model call failed, retrying",
			zap.String("provider", r.inner.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if errors.Is(err, ErrRateLimited) {
			delay *= 2
		}
	}
	return nil, lastErr
}
