package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/launchpro/creative-engine/internal/creative"
	"github.com/launchpro/creative-engine/internal/metrics"
)

// OpenAIConfig configures the OpenAI image backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string // defaults to dall-e-3
	Timeout time.Duration
}

// OpenAIProvider generates images through the OpenAI Images API.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client openai.Client
}

// NewOpenAIProvider constructs the provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = string(openai.ImageModelDallE3)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{cfg: cfg, client: openai.NewClient(opts...)}
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.cfg.Model }

// Generate issues one image call. The API has no separate negative-prompt
// channel, so exclusions are folded into the prompt text.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt = fmt.Sprintf("%s. Strictly avoid: %s", prompt, req.NegativePrompt)
	}

	params := openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(p.cfg.Model),
		N:              openai.Int(1),
		Size:           sizeFor(req.Aspect),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.Images.Generate(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
			metrics.RecordImageGeneration(p.Name(), "quota")
			return nil, fmt.Errorf("%w: %v", ErrQuotaExhausted, err)
		}
		metrics.RecordImageGeneration(p.Name(), "error")
		return nil, fmt.Errorf("openai images: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		metrics.RecordImageGeneration(p.Name(), "error")
		return nil, fmt.Errorf("openai images: empty response")
	}
	png, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		metrics.RecordImageGeneration(p.Name(), "error")
		return nil, fmt.Errorf("openai images: decode payload: %w", err)
	}
	metrics.RecordImageGeneration(p.Name(), "ok")

	return &Result{PNG: png, Model: p.cfg.Model, Provider: p.Name(), Latency: elapsed}, nil
}

func sizeFor(a creative.AspectRatio) openai.ImageGenerateParamsSize {
	if a.Height > a.Width {
		return openai.ImageGenerateParamsSize1024x1792
	}
	return openai.ImageGenerateParamsSize1024x1024
}
