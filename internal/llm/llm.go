// Package llm provides the single text-generation interface every agent
// depends on. Backend choice (OpenAI API or an internal bridge service) is a
// constructor parameter, never a source fork: all agents share one canonical
// behavior regardless of which provider serves them.
package llm

import (
	"context"
	"errors"
	"time"
)

// Request is one reasoning call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSONOnly asks the backend to constrain output to a JSON object.
	JSONOnly bool
	// SearchGrounded routes the call to a search-grounded model where the
	// backend supports one. Used by cultural research.
	SearchGrounded bool
}

// Response is the text and usage accounting of one call.
type Response struct {
	Text         string
	Model        string
	Provider     string
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
}

// Provider generates text. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

var (
	// ErrRateLimited reports provider throttling; callers may retry.
	ErrRateLimited = errors.New("llm: rate limited")
	// ErrEmptyResponse reports a call that returned no usable text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// DefaultTemperature is the canonical sampling temperature for strategy and
// prompt-translation calls.
const DefaultTemperature = 0.7
