// Package imagegen abstracts image-generation providers. The assembly agent
// drives a primary provider and switches to a fallback when the primary
// reports quota exhaustion.
package imagegen

import (
	"context"
	"errors"
	"time"

	"github.com/launchpro/creative-engine/internal/creative"
)

// Request is one image generation call.
type Request struct {
	Prompt         string
	NegativePrompt string
	Aspect         creative.AspectRatio
}

// Result carries the generated image.
type Result struct {
	PNG      []byte
	Model    string
	Provider string
	Latency  time.Duration
}

// Provider generates one image per call. Implementations must be safe for
// concurrent use.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, req Request) (*Result, error)
}

// ErrQuotaExhausted reports that the provider refused the call for quota or
// billing reasons. The assembly agent aborts remaining primary attempts and
// switches providers on this error.
var ErrQuotaExhausted = errors.New("imagegen: quota exhausted")
