// Package prompts implements the prompt translation agent: it converts a
// strategy brief into concrete image-generation prompts, one per aspect
// ratio the target platform requires. Prompts never ask for rendered text;
// visible text is composited deterministically later.
package prompts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/launchpro/creative-engine/internal/creative"
	"github.com/launchpro/creative-engine/internal/llm"
	"github.com/launchpro/creative-engine/internal/metrics"
	"github.com/launchpro/creative-engine/internal/modeljson"
	"github.com/launchpro/creative-engine/internal/pricing"
	"github.com/launchpro/creative-engine/internal/semcache"
)

const agentName = "prompt_translation"

// brandSafetyNegatives is the standing negative-prompt list applied to every
// generation regardless of style.
var brandSafetyNegatives = []string{
	"text", "letters", "words", "typography", "logo", "watermark", "signature",
	"nsfw", "violence", "weapons", "drugs", "political symbols",
	"deformed hands", "extra fingers", "distorted faces",
}

// styleNegatives adds per-style exclusions on top of the standing list.
var styleNegatives = map[creative.VisualStyle][]string{
	creative.StylePhotorealistic: {"cartoon", "illustration", "painting", "3d render"},
	creative.StyleIllustration:   {"photograph", "photorealistic"},
	creative.StyleMinimalist:     {"clutter", "busy background", "complex patterns"},
	creative.StyleLifestyle:      {"studio backdrop", "stock photo look", "posed"},
}

// Agent runs the prompt translation call.
type Agent struct {
	provider llm.Provider
	cache    *semcache.Cache
	pricing  *pricing.Table
	logger   *zap.Logger
	now      func() time.Time
}

func New(provider llm.Provider, cache *semcache.Cache, table *pricing.Table, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		provider: provider,
		cache:    cache,
		pricing:  table,
		logger:   logger,
		now:      time.Now,
	}
}

type promptPayload struct {
	Prompts []struct {
		AspectRatio string `json:"aspect_ratio"`
		Prompt      string `json:"prompt"`
	} `json:"prompts"`
}

// Run produces one visual prompt per required aspect ratio. Failures are
// recovered locally with template prompts, so this agent never blocks the
// pipeline.
func (a *Agent) Run(ctx context.Context, input creative.PipelineInput, brief creative.StrategyBrief, culture creative.CulturalContext) ([]creative.VisualPrompt, creative.RunInfo, error) {
	var info creative.RunInfo

	cache := a.cache
	if !input.UseCache {
		cache = nil
	}

	conceptID := ConceptID(brief)
	exactKey := fmt.Sprintf("%s:%s", conceptID, input.Platform)
	query := fmt.Sprintf("image prompts for %s %s %s", brief.VisualConcept, brief.VisualStyle, brief.PrimaryAngle)

	visualPrompts, lookup, err := semcache.GetOrCompute(ctx, cache, semcache.CategoryPrompts, exactKey, query,
		func(ctx context.Context) ([]creative.VisualPrompt, error) {
			return a.translate(ctx, input, brief, culture, conceptID, &info), nil
		})
	if err != nil {
		visualPrompts = templatePrompts(input, brief, conceptID)
		info.Warnf("prompt cache decode failed; template prompts substituted")
	}
	info.CacheHit = lookup.Hit
	return visualPrompts, info, nil
}

func (a *Agent) translate(ctx context.Context, input creative.PipelineInput, brief creative.StrategyBrief, culture creative.CulturalContext, conceptID string, info *creative.RunInfo) []creative.VisualPrompt {
	ratios := creative.RequiredAspectRatios(input.Platform)

	start := a.now()
	resp, err := a.provider.Generate(ctx, llm.Request{
		System:      promptSystem,
		Prompt:      buildPrompt(input, brief, culture, ratios),
		Temperature: llm.DefaultTemperature,
		MaxTokens:   1200,
		JSONOnly:    true,
	})
	if err != nil {
		metrics.RecordModelCall(a.provider.Name(), "error", a.now().Sub(start).Seconds())
		a.logger.Warn("prompt translation failed, using templates",
			zap.String("offer", input.OfferID), zap.Error(err))
		info.Warnf("prompt translation failed (%v); template prompts substituted", err)
		return templatePrompts(input, brief, conceptID)
	}
	metrics.RecordModelCall(a.provider.Name(), "ok", resp.Latency.Seconds())

	info.AddCall(creative.CallRecord{
		Agent:    agentName,
		Provider: resp.Provider,
		Model:    resp.Model,
		Latency:  resp.Latency,
		CostUSD:  a.pricing.CostForSplit(resp.Model, resp.InputTokens, resp.OutputTokens),
	})

	var payload promptPayload
	if perr := modeljson.Decode(resp.Text, &payload); perr != nil {
		a.logger.Warn("prompt translation returned unusable JSON, using templates",
			zap.String("offer", input.OfferID), zap.Error(perr))
		info.Warnf("prompt translation returned unusable JSON; template prompts substituted")
		return templatePrompts(input, brief, conceptID)
	}

	byRatio := make(map[string]string, len(payload.Prompts))
	for _, p := range payload.Prompts {
		if strings.TrimSpace(p.Prompt) != "" {
			byRatio[p.AspectRatio] = p.Prompt
		}
	}

	out := make([]creative.VisualPrompt, 0, len(ratios))
	for _, ratio := range ratios {
		text, ok := byRatio[ratio.Name]
		if !ok {
			info.Warnf("model omitted a %s prompt; template substituted", ratio.Name)
			text = templateScene(brief, ratio)
		}
		out = append(out, newPrompt(text, ratio, brief, conceptID))
	}
	return out
}

// ConceptID derives a stable id from the parts of the brief that shape the
// imagery. Identical concepts share prompt cache entries.
func ConceptID(brief creative.StrategyBrief) string {
	h := sha256.Sum256([]byte(brief.VisualConcept + "|" + string(brief.VisualStyle) + "|" + string(brief.PrimaryAngle)))
	return hex.EncodeToString(h[:8])
}

// NegativePrompt assembles the standing brand-safety list plus the style's
// additions.
func NegativePrompt(style creative.VisualStyle) string {
	terms := make([]string, 0, len(brandSafetyNegatives)+4)
	terms = append(terms, brandSafetyNegatives...)
	terms = append(terms, styleNegatives[style]...)
	return strings.Join(terms, ", ")
}

func newPrompt(text string, ratio creative.AspectRatio, brief creative.StrategyBrief, conceptID string) creative.VisualPrompt {
	return creative.VisualPrompt{
		Prompt:         text,
		NegativePrompt: NegativePrompt(brief.VisualStyle),
		AspectRatio:    ratio,
		Style:          brief.VisualStyle,
		SafetyLevel:    "strict",
		ConceptID:      conceptID,
		Variation:      0,
	}
}

const promptSystem = `You are an expert at writing prompts for image generation models.
Respond with a single JSON object: {"prompts": [{"aspect_ratio": "...", "prompt": "..."}]}.
Every prompt must describe a scene with absolutely no text, letters, logos,
watermarks, or typography of any kind. Text is added later by a separate
compliance process.`

func buildPrompt(input creative.PipelineInput, brief creative.StrategyBrief, culture creative.CulturalContext, ratios []creative.AspectRatio) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write one image generation prompt per aspect ratio for a %s ad.\n", input.Platform)
	fmt.Fprintf(&b, "Visual concept: %s\nStyle: %s\nPsychological angle: %s\n",
		brief.VisualConcept, brief.VisualStyle, brief.PrimaryAngle)
	if len(brief.ColorPalette) > 0 {
		fmt.Fprintf(&b, "Color palette: %s\n", strings.Join(brief.ColorPalette, ", "))
	}
	if len(culture.VisualCodes) > 0 {
		fmt.Fprintf(&b, "Local visual codes: %s\n", strings.Join(culture.VisualCodes, ", "))
	}
	if len(culture.Taboos) > 0 {
		fmt.Fprintf(&b, "Never depict: %s\n", strings.Join(culture.Taboos, ", "))
	}
	b.WriteString("Aspect ratios required:\n")
	for _, r := range ratios {
		fmt.Fprintf(&b, "- %s (%dx%d)\n", r.Name, r.Width, r.Height)
	}
	b.WriteString("Remember: no text, letters, logos, or watermarks in any prompt.")
	return b.String()
}

// templatePrompts is the deterministic fallback: a generic but safe scene
// description per required aspect ratio, same count as the model path.
func templatePrompts(input creative.PipelineInput, brief creative.StrategyBrief, conceptID string) []creative.VisualPrompt {
	ratios := creative.RequiredAspectRatios(input.Platform)
	out := make([]creative.VisualPrompt, 0, len(ratios))
	for _, ratio := range ratios {
		out = append(out, newPrompt(templateScene(brief, ratio), ratio, brief, conceptID))
	}
	return out
}

func templateScene(brief creative.StrategyBrief, ratio creative.AspectRatio) string {
	composition := "balanced centered composition"
	if ratio.Height > ratio.Width {
		composition = "vertical composition with clear space in the lower third"
	}
	return fmt.Sprintf(
		"%s scene, %s, soft natural lighting, high quality commercial photography aesthetic, %s, no visible text or branding",
		brief.VisualStyle, brief.VisualConcept, composition)
}
