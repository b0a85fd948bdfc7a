package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type flakyProvider struct {
	failures int
	calls    int
	err      error
}

func (f *flakyProvider) Name() string { return "flaky" }

func (f *flakyProvider) Generate(_ context.Context, _ Request) (*Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &Response{Text: "ok", Provider: "flaky"}, nil
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	inner := &flakyProvider{failures: 2, err: ErrRateLimited}
	p := WithRetries(inner, 3, time.Millisecond, zaptest.NewLogger(t))

	resp, err := p.Generate(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("boom")}
	p := WithRetries(inner, 2, time.Millisecond, zaptest.NewLogger(t))

	_, err := p.Generate(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	inner := &flakyProvider{failures: 10, err: errors.New("boom")}
	p := WithRetries(inner, 5, 50*time.Millisecond, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls, "cancelled context must not burn retries")
}
