package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/launchpro/creative-engine/internal/metrics"
)

// OpenAIConfig configures the OpenAI-backed provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Model handles ordinary reasoning calls.
	Model string
	// SearchModel handles search-grounded calls; falls back to Model when
	// empty.
	SearchModel string
	Timeout     time.Duration
}

// OpenAIProvider implements Provider on the OpenAI chat completions API.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client openai.Client
}

// NewOpenAIProvider constructs the provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{cfg: cfg, client: openai.NewClient(opts...)}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Generate issues one chat completion.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := p.cfg.Model
	if req.SearchGrounded && p.cfg.SearchModel != "" {
		model = p.cfg.SearchModel
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONOnly {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) && apierr.StatusCode == http.StatusTooManyRequests {
			metrics.RecordModelCall(p.Name(), "rate_limited", elapsed.Seconds())
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		metrics.RecordModelCall(p.Name(), "error", elapsed.Seconds())
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.RecordModelCall(p.Name(), "empty", elapsed.Seconds())
		return nil, ErrEmptyResponse
	}
	metrics.RecordModelCall(p.Name(), "ok", elapsed.Seconds())

	return &Response{
		Text:         resp.Choices[0].Message.Content,
		Model:        model,
		Provider:     p.Name(),
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		Latency:      elapsed,
	}, nil
}
