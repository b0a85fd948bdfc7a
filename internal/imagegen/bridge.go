package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/launchpro/creative-engine/internal/circuitbreaker"
	"github.com/launchpro/creative-engine/internal/metrics"
)

// BridgeConfig configures the HTTP image backend, used as the fallback model
// behind an internal image-generation service.
type BridgeConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// BridgeProvider implements Provider against an internal image service.
type BridgeProvider struct {
	cfg  BridgeConfig
	http *circuitbreaker.HTTPWrapper
}

// NewBridgeProvider constructs the provider.
func NewBridgeProvider(cfg BridgeConfig, logger *zap.Logger) *BridgeProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "sd-xl"
	}
	client := &http.Client{Timeout: cfg.Timeout}
	return &BridgeProvider{
		cfg:  cfg,
		http: circuitbreaker.NewHTTPWrapper(client, "image-bridge", "imagegen", circuitbreaker.ImageProfile(), logger),
	}
}

func (p *BridgeProvider) Name() string  { return "bridge" }
func (p *BridgeProvider) Model() string { return p.cfg.Model }

type bridgeImageRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Model          string `json:"model"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

type bridgeImageResponse struct {
	ImageB64 string `json:"image_b64"`
	Model    string `json:"model"`
}

// Generate posts the request to the service's /v1/images/generate endpoint.
func (p *BridgeProvider) Generate(ctx context.Context, req Request) (*Result, error) {
	body, _ := json.Marshal(bridgeImageRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          p.cfg.Model,
		Width:          req.Aspect.Width,
		Height:         req.Aspect.Height,
	})

	url := fmt.Sprintf("%s/v1/images/generate", p.cfg.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordImageGeneration(p.Name(), "error")
		return nil, fmt.Errorf("image bridge: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusPaymentRequired:
		metrics.RecordImageGeneration(p.Name(), "quota")
		return nil, ErrQuotaExhausted
	case resp.StatusCode != http.StatusOK:
		metrics.RecordImageGeneration(p.Name(), "error")
		return nil, fmt.Errorf("image bridge: status %d", resp.StatusCode)
	}

	var br bridgeImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		metrics.RecordImageGeneration(p.Name(), "error")
		return nil, fmt.Errorf("image bridge: decode: %w", err)
	}
	png, err := base64.StdEncoding.DecodeString(br.ImageB64)
	if err != nil || len(png) == 0 {
		metrics.RecordImageGeneration(p.Name(), "error")
		return nil, fmt.Errorf("image bridge: invalid payload")
	}
	metrics.RecordImageGeneration(p.Name(), "ok")

	model := br.Model
	if model == "" {
		model = p.cfg.Model
	}
	return &Result{PNG: png, Model: model, Provider: p.Name(), Latency: elapsed}, nil
}
