// Package health aggregates component health checks for the engine's
// liveness and readiness endpoints.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the health of one component or the whole service.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Critical  bool          `json:"critical"`
}

// Checker probes one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
	// Critical marks checks whose failure makes the service unready.
	// Non-critical failures only degrade it.
	Critical() bool
}

const checkTimeout = 3 * time.Second

// Manager runs registered checks.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// Register adds a checker.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Overall runs every check and reduces to a single status.
func (m *Manager) Overall(ctx context.Context) (Status, []CheckResult) {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	overall := StatusHealthy
	results := make([]CheckResult, 0, len(checkers))
	for _, c := range checkers {
		result := m.run(ctx, c)
		results = append(results, result)
		if result.Status == StatusHealthy {
			continue
		}
		if result.Critical {
			overall = StatusUnhealthy
		} else if overall == StatusHealthy {
			overall = StatusDegraded
		}
	}
	return overall, results
}

func (m *Manager) run(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	result := CheckResult{
		Component: c.Name(),
		Status:    StatusHealthy,
		Duration:  time.Since(start),
		Critical:  c.Critical(),
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		m.logger.Warn("health check failed",
			zap.String("component", c.Name()),
			zap.Error(err))
	}
	return result
}

// CheckFunc adapts a function to the Checker interface.
type CheckFunc struct {
	ComponentName string
	IsCritical    bool
	Fn            func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.ComponentName }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }
func (c CheckFunc) Critical() bool                  { return c.IsCritical }
