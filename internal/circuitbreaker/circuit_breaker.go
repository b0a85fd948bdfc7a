package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the breaker's position in its closed / half-open / open cycle.
// The numeric values feed the state gauge directly.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("too many requests in half-open state")
)

// Config tunes one breaker instance. Profiles in config.go provide the
// per-dependency defaults.
type Config struct {
	MaxRequests      uint32        // probe allowance while half-open
	Interval         time.Duration // closed-state window before counters roll over
	Timeout          time.Duration // cool-off before an open breaker probes again
	FailureThreshold uint32        // consecutive failures that trip the breaker
	SuccessThreshold uint32        // consecutive half-open successes that close it
	OnStateChange    func(name string, from State, to State)
}

// DefaultConfig returns a conservative general-purpose configuration.
func DefaultConfig() Config {
	return Config{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
	}
}

// Counts is a snapshot of the breaker's tallies for the current window.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker tracks the health of one downstream dependency and refuses
// calls while the dependency is considered dead.
type CircuitBreaker struct {
	name   string
	config Config
	logger *zap.Logger
	clock  func() time.Time

	mu       sync.Mutex
	state    State
	epoch    uint64
	counts   Counts
	deadline time.Time
}

// NewCircuitBreaker creates a closed breaker with the given configuration.
func NewCircuitBreaker(name string, config Config, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		clock:  time.Now,
	}
}

// Execute runs fn if the breaker admits the call. A context that is already
// cancelled fails fast without touching breaker accounting. A panic inside fn
// is recorded as a failure before it propagates.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	epoch, err := cb.admit()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.settle(epoch, false)
			panic(r)
		}
	}()

	err = fn()
	cb.settle(epoch, err == nil)
	return err
}

// Name returns the breaker's identifying name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// State reports the current state, rolling the state machine forward first so
// an expired cool-off shows as half-open rather than open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh(cb.clock())
	return cb.state
}

// Counts returns a snapshot of the current window's tallies.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// admit decides whether a call may proceed and stamps it with the current
// epoch so a late outcome from a rolled-over window is ignored.
func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.refresh(cb.clock())

	switch {
	case cb.state == StateOpen:
		return cb.epoch, ErrCircuitBreakerOpen
	case cb.state == StateHalfOpen && cb.counts.Requests >= cb.config.MaxRequests:
		return cb.epoch, ErrTooManyRequests
	}

	cb.counts.Requests++
	return cb.epoch, nil
}

// settle records a call outcome, unless the window it was admitted in has
// already rolled over.
func (cb *CircuitBreaker) settle(epoch uint64, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.clock()
	cb.refresh(now)
	if cb.epoch != epoch {
		return
	}

	if ok {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen && cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.transition(StateClosed, now)
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0
	switch cb.state {
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold {
			cb.transition(StateOpen, now)
		}
	case StateHalfOpen:
		cb.transition(StateOpen, now)
	}
}

// refresh rolls the state machine forward to now. The first closed window is
// anchored lazily so a clock injected after construction still governs every
// deadline. Callers must hold mu.
func (cb *CircuitBreaker) refresh(now time.Time) {
	switch cb.state {
	case StateClosed:
		if cb.config.Interval <= 0 {
			return
		}
		if cb.deadline.IsZero() {
			cb.deadline = now.Add(cb.config.Interval)
			return
		}
		if now.After(cb.deadline) {
			cb.rollWindow(now)
		}
	case StateOpen:
		if now.After(cb.deadline) {
			cb.transition(StateHalfOpen, now)
		}
	}
}

func (cb *CircuitBreaker) transition(to State, now time.Time) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.rollWindow(now)

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, from, to)
	}
	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// rollWindow starts a fresh accounting window for the current state.
func (cb *CircuitBreaker) rollWindow(now time.Time) {
	cb.epoch++
	cb.counts = Counts{}

	switch cb.state {
	case StateClosed:
		if cb.config.Interval > 0 {
			cb.deadline = now.Add(cb.config.Interval)
		} else {
			cb.deadline = time.Time{}
		}
	case StateOpen:
		cb.deadline = now.Add(cb.config.Timeout)
	default:
		cb.deadline = time.Time{}
	}
}
