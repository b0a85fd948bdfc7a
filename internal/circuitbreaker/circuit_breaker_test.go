package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errDown = errors.New("dependency down")

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(t *testing.T, cfg Config) (*CircuitBreaker, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", cfg, zaptest.NewLogger(t))
	cb.clock = clk.Now
	return cb, clk
}

func testConfig() Config {
	return Config{
		MaxRequests:      2,
		Interval:         time.Minute,
		Timeout:          10 * time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, testConfig())

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return errDown })
		require.ErrorIs(t, err, errDown)
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb, _ := newTestBreaker(t, testConfig())

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func() error { return errDown })
	}
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	_ = cb.Execute(context.Background(), func() error { return errDown })

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb, clk := newTestBreaker(t, testConfig())

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func() error { return errDown })
	}
	require.Equal(t, StateOpen, cb.State())

	clk.Advance(11 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clk := newTestBreaker(t, testConfig())

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func() error { return errDown })
	}
	clk.Advance(11 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return errDown })
	require.ErrorIs(t, err, errDown)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	cfg := testConfig()
	cfg.SuccessThreshold = 10 // keep it half-open across probes
	cb, clk := newTestBreaker(t, cfg)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func() error { return errDown })
	}
	clk.Advance(11 * time.Second)

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	}
	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestBreakerClosedWindowRollsOver(t *testing.T) {
	cb, clk := newTestBreaker(t, testConfig())

	for i := 0; i < 2; i++ {
		_ = cb.Execute(context.Background(), func() error { return errDown })
	}
	clk.Advance(2 * time.Minute)

	// The failure streak belongs to the previous window.
	_ = cb.Execute(context.Background(), func() error { return errDown })
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)
}

func TestBreakerWindowAnchorsToInjectedClock(t *testing.T) {
	cb, clk := newTestBreaker(t, testConfig())

	// The first call anchors the closed window at the injected clock, not
	// at construction time.
	_ = cb.Execute(context.Background(), func() error { return errDown })
	require.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)

	clk.Advance(59 * time.Second)
	_ = cb.Execute(context.Background(), func() error { return errDown })
	assert.Equal(t, uint32(2), cb.Counts().ConsecutiveFailures)

	clk.Advance(2 * time.Second)
	_ = cb.Execute(context.Background(), func() error { return errDown })
	assert.Equal(t, uint32(1), cb.Counts().ConsecutiveFailures)
}

func TestBreakerCancelledContextFailsFast(t *testing.T) {
	cb, _ := newTestBreaker(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, uint32(0), cb.Counts().Requests)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	cb, _ := newTestBreaker(t, testConfig())

	for i := 0; i < 3; i++ {
		require.Panics(t, func() {
			_ = cb.Execute(context.Background(), func() error { panic("boom") })
		})
	}
	assert.Equal(t, StateOpen, cb.State())
}
