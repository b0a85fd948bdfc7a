// Package assembly implements the compliance assembly agent. It generates
// base imagery, selects the copy to render through a path that never touches
// generative model output, composites that copy deterministically, and
// persists the artifacts. The one rule this package exists to enforce: no
// generative model output becomes visible text on a delivered artifact.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/launchpro/creative-engine/internal/creative"
	"github.com/launchpro/creative-engine/internal/imagegen"
	"github.com/launchpro/creative-engine/internal/metrics"
	"github.com/launchpro/creative-engine/internal/overlay"
	"github.com/launchpro/creative-engine/internal/pricing"
	"github.com/launchpro/creative-engine/internal/storage"
)

const agentName = "compliance_assembly"

// Config bounds the assembly stage.
type Config struct {
	// MaxImages caps generated images per request.
	MaxImages int
	// URLExpiry is the signed-URL lifetime for persisted artifacts.
	URLExpiry time.Duration
	// RatePerMinute paces image generation calls.
	RatePerMinute int
}

func (c Config) withDefaults() Config {
	if c.MaxImages <= 0 {
		c.MaxImages = 4
	}
	if c.URLExpiry <= 0 {
		c.URLExpiry = storage.DefaultURLExpiry
	}
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = 10
	}
	return c
}

// Agent assembles the final creative package.
type Agent struct {
	primary  imagegen.Provider
	fallback imagegen.Provider
	renderer *overlay.Renderer
	store    storage.BlobStore
	pricing  *pricing.Table
	limiter  *rate.Limiter
	cfg      Config
	logger   *zap.Logger
}

// New builds the agent. fallback may be nil when no secondary image provider
// is configured.
func New(primary, fallback imagegen.Provider, renderer *overlay.Renderer, store storage.BlobStore, table *pricing.Table, cfg Config, logger *zap.Logger) *Agent {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		primary:  primary,
		fallback: fallback,
		renderer: renderer,
		store:    store,
		pricing:  table,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1),
		cfg:      cfg,
		logger:   logger,
	}
}

// Run produces the creative package. Imaging failures degrade: quota
// exhaustion triggers one whole-batch fallback attempt, and a total imaging
// failure yields a copy-only package with a warning, never an error.
func (a *Agent) Run(ctx context.Context, input creative.PipelineInput, brief creative.StrategyBrief, visualPrompts []creative.VisualPrompt, assets creative.RetrievedAssets) (creative.CreativePackage, creative.RunInfo, error) {
	var info creative.RunInfo

	// Copy selection happens before any image exists and reads only
	// reviewed sources.
	bundle := SelectCopy(input, brief, assets)

	runID := uuid.NewString()
	generated := a.generate(ctx, input, visualPrompts, &info)

	artifacts := make([]creative.CreativeArtifact, 0, len(generated))
	for i, g := range generated {
		artifact, err := a.finishArtifact(ctx, runID, input, bundle, g, i, &info)
		if err != nil {
			info.Warnf("artifact %d dropped: %v", i, err)
			continue
		}
		artifacts = append(artifacts, artifact)
	}

	if len(artifacts) == 0 {
		info.Warnf("no images produced; returning copy-only package")
	}

	pkg := creative.CreativePackage{
		Copy:      bundle,
		Artifacts: artifacts,
		Strategy: creative.StrategySummary{
			Angle:         brief.PrimaryAngle,
			VisualStyle:   brief.VisualStyle,
			KeyMessage:    brief.KeyMessage,
			VisualConcept: brief.VisualConcept,
		},
	}
	return pkg, info, nil
}

// generatedImage pairs a generation result with its source prompt.
type generatedImage struct {
	result *imagegen.Result
	prompt creative.VisualPrompt
}

// generate runs the bounded sequential generation loop. A quota error from
// the primary aborts its remaining attempts and triggers a single
// whole-batch attempt on the fallback provider.
func (a *Agent) generate(ctx context.Context, input creative.PipelineInput, visualPrompts []creative.VisualPrompt, info *creative.RunInfo) []generatedImage {
	batch := a.batchFor(input, visualPrompts)
	if len(batch) == 0 {
		return nil
	}

	out, quotaHit := a.runBatch(ctx, a.primary, batch, info)
	if quotaHit {
		info.Warnf("primary image provider %s quota exhausted", a.primary.Name())
		if a.fallback == nil {
			info.Warnf("no fallback image provider configured")
			return out
		}
		info.Warnf("retrying whole batch on fallback provider %s", a.fallback.Name())
		fallbackOut, _ := a.runBatch(ctx, a.fallback, batch, info)
		// The fallback attempt replaces the batch: partial primary output
		// would mix providers mid-campaign.
		if len(fallbackOut) > 0 {
			return fallbackOut
		}
	}
	return out
}

// batchFor caps the prompt list to the requested and configured image count,
// cycling through prompts so every aspect ratio is covered first.
func (a *Agent) batchFor(input creative.PipelineInput, visualPrompts []creative.VisualPrompt) []creative.VisualPrompt {
	if len(visualPrompts) == 0 {
		return nil
	}
	n := input.ImageCount
	if n <= 0 {
		n = len(visualPrompts)
	}
	if n > a.cfg.MaxImages {
		n = a.cfg.MaxImages
	}
	batch := make([]creative.VisualPrompt, 0, n)
	for i := 0; i < n; i++ {
		p := visualPrompts[i%len(visualPrompts)]
		p.Variation = i / len(visualPrompts)
		batch = append(batch, p)
	}
	return batch
}

func (a *Agent) runBatch(ctx context.Context, provider imagegen.Provider, batch []creative.VisualPrompt, info *creative.RunInfo) ([]generatedImage, bool) {
	out := make([]generatedImage, 0, len(batch))
	for _, p := range batch {
		if err := a.limiter.Wait(ctx); err != nil {
			info.Warnf("generation interrupted: %v", err)
			return out, false
		}
		result, err := provider.Generate(ctx, imagegen.Request{
			Prompt:         p.Prompt,
			NegativePrompt: p.NegativePrompt,
			Aspect:         p.AspectRatio,
		})
		if err != nil {
			metrics.RecordImageGeneration(provider.Name(), "error")
			if errors.Is(err, imagegen.ErrQuotaExhausted) {
				return out, true
			}
			a.logger.Warn("image generation failed",
				zap.String("provider", provider.Name()),
				zap.String("aspect", p.AspectRatio.Name),
				zap.Error(err))
			info.Warnf("image generation failed for %s: %v", p.AspectRatio.Name, err)
			continue
		}
		metrics.RecordImageGeneration(provider.Name(), "ok")

		cost := a.pricing.CostForImages(result.Model, 1)
		metrics.GenerationCostUSD.WithLabelValues(agentName).Add(cost)
		info.AddCall(creative.CallRecord{
			Agent:    agentName,
			Provider: result.Provider,
			Model:    result.Model,
			Latency:  result.Latency,
			CostUSD:  cost,
		})
		out = append(out, generatedImage{result: result, prompt: p})
	}
	return out, false
}

// finishArtifact composites the overlay, persists the image, and signs a
// URL for it.
func (a *Agent) finishArtifact(ctx context.Context, runID string, input creative.PipelineInput, bundle creative.CopyBundle, g generatedImage, index int, info *creative.RunInfo) (creative.CreativeArtifact, error) {
	img, err := overlay.DecodeImage(g.result.PNG)
	if err != nil {
		return creative.CreativeArtifact{}, fmt.Errorf("decode generated image: %w", err)
	}

	hasOverlay := false
	if input.TextOverlay {
		composed, err := a.renderer.Compose(img, bundle.Headline, bundle.CallToAction)
		if err != nil {
			// An image without text overlay is an acceptable degraded
			// result. An unreviewed caption is not.
			metrics.OverlayFallbacks.Inc()
			a.logger.Warn("overlay rendering failed, shipping gradient-only image",
				zap.String("aspect", g.prompt.AspectRatio.Name),
				zap.Error(err))
			info.Warnf("text overlay failed for %s; gradient-only image shipped", g.prompt.AspectRatio.Name)
			img = a.renderer.GradientOnly(img)
		} else {
			img = composed
			hasOverlay = true
		}
	}

	data, err := overlay.EncodePNG(img)
	if err != nil {
		return creative.CreativeArtifact{}, fmt.Errorf("encode artifact: %w", err)
	}

	id := uuid.NewString()
	key := fmt.Sprintf("campaigns/%s/%s_%s_%d_%s.png",
		runID,
		strings.ToLower(string(input.Platform)),
		strings.ReplaceAll(g.prompt.AspectRatio.Name, ":", "x"),
		index,
		id[:8])
	if err := a.store.Put(ctx, key, data, "image/png"); err != nil {
		return creative.CreativeArtifact{}, fmt.Errorf("persist artifact: %w", err)
	}
	metrics.ArtifactsPersisted.Inc()

	url, err := a.store.SignedURL(ctx, key, a.cfg.URLExpiry)
	if err != nil {
		return creative.CreativeArtifact{}, fmt.Errorf("sign artifact url: %w", err)
	}

	bounds := img.Bounds()
	return creative.CreativeArtifact{
		ID:             id,
		URL:            url,
		StorageKey:     key,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		AspectRatio:    g.prompt.AspectRatio,
		HasTextOverlay: hasOverlay,
	}, nil
}

// SelectCopy picks the text to render on artifacts. Priority: caller
// override, then the strategy's key message, then the platform adaptation,
// then an approved snippet. Each source is either caller-supplied or has
// passed through enum/default validation; none is raw model output bound for
// an image caption.
func SelectCopy(input creative.PipelineInput, brief creative.StrategyBrief, assets creative.RetrievedAssets) creative.CopyBundle {
	adaptation := brief.PlatformCopy[input.Platform]

	headline := input.CopyOverride
	if headline == "" {
		headline = brief.KeyMessage
	}
	if headline == "" {
		headline = adaptation.Headline
	}
	if headline == "" {
		headline = snippetText(assets, creative.SnippetHeadline)
	}

	cta := adaptation.CallToAction
	if cta == "" {
		cta = snippetText(assets, creative.SnippetCTA)
	}

	primaryText := adaptation.PrimaryText
	if primaryText == "" {
		primaryText = snippetText(assets, creative.SnippetPrimaryText)
	}
	description := adaptation.Description
	if description == "" {
		description = snippetText(assets, creative.SnippetDescription)
	}

	return creative.CopyBundle{
		Headline:     headline,
		PrimaryText:  primaryText,
		Description:  description,
		CallToAction: cta,
		Language:     input.Language,
	}
}

func snippetText(assets creative.RetrievedAssets, st creative.SnippetType) string {
	for _, s := range assets.ApprovedCopy {
		if s.Type == st {
			return s.Text
		}
	}
	return ""
}
