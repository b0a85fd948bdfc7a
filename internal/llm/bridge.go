package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/launchpro/creative-engine/internal/circuitbreaker"
	"github.com/launchpro/creative-engine/internal/metrics"
)

// BridgeConfig configures the bridge provider, which talks to an internal
// LLM gateway over HTTP. Deployments that route all model traffic through a
// central gateway use this backend instead of direct provider SDKs.
type BridgeConfig struct {
	BaseURL string
	Timeout time.Duration
}

// BridgeProvider implements Provider against the internal gateway.
type BridgeProvider struct {
	cfg  BridgeConfig
	http *circuitbreaker.HTTPWrapper
	log  *zap.Logger
}

// NewBridgeProvider constructs the provider.
func NewBridgeProvider(cfg BridgeConfig, logger *zap.Logger) *BridgeProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return &BridgeProvider{
		cfg:  cfg,
		http: circuitbreaker.NewHTTPWrapper(client, "llm-bridge", "llm", circuitbreaker.LLMProfile(), logger),
		log:  logger,
	}
}

func (p *BridgeProvider) Name() string { return "bridge" }

type bridgeRequest struct {
	System         string  `json:"system,omitempty"`
	Prompt         string  `json:"prompt"`
	Temperature    float64 `json:"temperature,omitempty"`
	MaxTokens      int     `json:"max_tokens,omitempty"`
	JSONOnly       bool    `json:"json_only,omitempty"`
	SearchGrounded bool    `json:"search_grounded,omitempty"`
}

type bridgeResponse struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Generate posts the request to the gateway's /v1/generate endpoint.
func (p *BridgeProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	body, _ := json.Marshal(bridgeRequest{
		System:         req.System,
		Prompt:         req.Prompt,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		JSONOnly:       req.JSONOnly,
		SearchGrounded: req.SearchGrounded,
	})

	url := fmt.Sprintf("%s/v1/generate", p.cfg.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordModelCall(p.Name(), "error", elapsed.Seconds())
		return nil, fmt.Errorf("llm bridge: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordModelCall(p.Name(), "rate_limited", elapsed.Seconds())
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		metrics.RecordModelCall(p.Name(), "error", elapsed.Seconds())
		return nil, fmt.Errorf("llm bridge: status %d", resp.StatusCode)
	}

	var br bridgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		metrics.RecordModelCall(p.Name(), "error", elapsed.Seconds())
		return nil, fmt.Errorf("llm bridge: decode: %w", err)
	}
	if br.Text == "" {
		metrics.RecordModelCall(p.Name(), "empty", elapsed.Seconds())
		return nil, ErrEmptyResponse
	}
	metrics.RecordModelCall(p.Name(), "ok", elapsed.Seconds())

	return &Response{
		Text:         br.Text,
		Model:        br.Model,
		Provider:     p.Name(),
		InputTokens:  br.InputTokens,
		OutputTokens: br.OutputTokens,
		Latency:      elapsed,
	}, nil
}
