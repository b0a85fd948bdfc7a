package creative

import (
	"fmt"
	"time"
)

// ErrorCode is the closed set of failure categories an agent may report.
type ErrorCode string

const (
	ErrModel           ErrorCode = "model_error"
	ErrRateLimit       ErrorCode = "rate_limit"
	ErrTimeout         ErrorCode = "timeout"
	ErrInvalidResponse ErrorCode = "invalid_response"
	ErrInvalidInput    ErrorCode = "invalid_input"
	ErrCache           ErrorCode = "cache_error"
	ErrEmbedding       ErrorCode = "embedding_error"
	ErrImageGeneration ErrorCode = "image_generation_error"
	ErrAssembly        ErrorCode = "assembly_error"
	ErrRetrieval       ErrorCode = "retrieval_error"
)

// AgentError is the uniform tagged error every agent reports. Recoverable
// signals whether the orchestrator may continue with degraded output.
type AgentError struct {
	Agent       string    `json:"agent"`
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Agent, e.Code, e.Message)
}

// NewAgentError builds a tagged error stamped with the current time.
func NewAgentError(agent string, code ErrorCode, recoverable bool, format string, args ...interface{}) *AgentError {
	return &AgentError{
		Agent:       agent,
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Recoverable: recoverable,
		Timestamp:   time.Now().UTC(),
	}
}

// RunInfo is the per-agent bookkeeping returned alongside agent output:
// whether the result came from cache, which external calls were made, and
// any non-fatal warnings accumulated on the way.
type RunInfo struct {
	CacheHit bool
	Calls    []CallRecord
	Warnings []string
}

// AddCall appends a call record.
func (r *RunInfo) AddCall(c CallRecord) {
	r.Calls = append(r.Calls, c)
}

// Warnf appends a formatted warning.
func (r *RunInfo) Warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
