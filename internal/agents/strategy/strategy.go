// Package strategy implements the strategy agent: it synthesizes the
// cultural brief and retrieved assets into a creative strategy. Every
// enum-typed field in the output is validated against its closed set, and a
// total parse failure yields a deterministic language-aware default strategy
// instead of an error.
package strategy

import (
	"context"
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

const agentName = "strategy"

// Agent runs the strategy synthesis call.
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

// strategyPayload is the JSON shape requested from the model. All string
// fields are validated before entering a StrategyBrief.
type strategyPayload struct {
	PrimaryAngle   string   `json:"primary_angle"`
	SecondaryAngle string   `json:"secondary_angle"`
	CoreCopy       string   `json:"core_copy"`
	KeyMessage     string   `json:"key_message"`
	EmotionalHook  string   `json:"emotional_hook"`
	VisualConcept  string   `json:"visual_concept"`
	VisualStyle    string   `json:"visual_style"`
	ColorPalette   []string `json:"color_palette"`
	PlatformCopy   struct {
		Headline     string `json:"headline"`
		PrimaryText  string `json:"primary_text"`
		Description  string `json:"description"`
		CallToAction string `json:"call_to_action"`
	} `json:"platform_copy"`
}

// Run produces the strategy brief. Model failures and unusable JSON are both
// recovered locally with the deterministic default strategy, so this agent
// never blocks the pipeline.
func (a *Agent) Run(ctx context.Context, input creative.PipelineInput, culture creative.CulturalContext, assets creative.RetrievedAssets) (creative.StrategyBrief, creative.RunInfo, error) {
	var info creative.RunInfo

	cache := a.cache
	if !input.UseCache {
		cache = nil
	}

	exactKey := fmt.Sprintf("%s:%s:%s", input.OfferID, input.Country, input.Platform)
	query := fmt.Sprintf("creative strategy for %s in %s on %s", input.OfferName, input.Country, input.Platform)

	brief, lookup, err := semcache.GetOrCompute(ctx, cache, semcache.CategoryStrategy, exactKey, query,
		func(ctx context.Context) (creative.StrategyBrief, error) {
			return a.synthesize(ctx, input, culture, assets, &info), nil
		})
	if err != nil {
		// compute never errors; this is a decode edge covered by the
		// typed wrapper. Fall back the same way a parse failure does.
		brief = DefaultBrief(input)
		info.Warnf("strategy cache decode failed; default strategy substituted")
	}
	info.CacheHit = lookup.Hit

	brief = applyOverrides(brief, input, &info)
	ensurePlatformCopy(&brief, input)
	return brief, info, nil
}

// synthesize makes the model call and validates the result. Any failure
// degrades to the deterministic default strategy.
func (a *Agent) synthesize(ctx context.Context, input creative.PipelineInput, culture creative.CulturalContext, assets creative.RetrievedAssets, info *creative.RunInfo) creative.StrategyBrief {
	start := a.now()
	resp, err := a.provider.Generate(ctx, llm.Request{
		System:      strategySystem,
		Prompt:      buildPrompt(input, culture, assets),
		Temperature: llm.DefaultTemperature,
		MaxTokens:   1600,
		JSONOnly:    true,
	})
	if err != nil {
		metrics.RecordModelCall(a.provider.Name(), "error", a.now().Sub(start).Seconds())
		a.logger.Warn("strategy call failed, using default strategy",
			zap.String("offer", input.OfferID), zap.Error(err))
		info.Warnf("strategy generation failed (%v); default strategy substituted", err)
		return DefaultBrief(input)
	}
	metrics.RecordModelCall(a.provider.Name(), "ok", resp.Latency.Seconds())

	info.AddCall(creative.CallRecord{
		Agent:    agentName,
		Provider: resp.Provider,
		Model:    resp.Model,
		Latency:  resp.Latency,
		CostUSD:  a.pricing.CostForSplit(resp.Model, resp.InputTokens, resp.OutputTokens),
	})

	var payload strategyPayload
	if perr := modeljson.Decode(resp.Text, &payload); perr != nil {
		a.logger.Warn("strategy response unusable, using default strategy",
			zap.String("offer", input.OfferID), zap.Error(perr))
		info.Warnf("strategy returned unusable JSON; default strategy substituted")
		return DefaultBrief(input)
	}
	return a.validate(payload, input, info)
}

// validate maps the raw payload onto a brief, replacing every invalid or
// missing enum value with its default.
func (a *Agent) validate(p strategyPayload, input creative.PipelineInput, info *creative.RunInfo) creative.StrategyBrief {
	primary, ok := creative.ParseAngle(p.PrimaryAngle)
	if !ok {
		info.Warnf("unknown primary angle %q replaced with %s", p.PrimaryAngle, primary)
	}
	secondary, _ := creative.ParseAngle(p.SecondaryAngle)
	style, ok := creative.ParseVisualStyle(p.VisualStyle)
	if !ok {
		info.Warnf("unknown visual style %q replaced with %s", p.VisualStyle, style)
	}

	fallback := DefaultBrief(input)
	brief := creative.StrategyBrief{
		PrimaryAngle:   primary,
		SecondaryAngle: secondary,
		CoreCopy:       firstNonEmpty(p.CoreCopy, fallback.CoreCopy),
		KeyMessage:     firstNonEmpty(p.KeyMessage, fallback.KeyMessage),
		EmotionalHook:  firstNonEmpty(p.EmotionalHook, fallback.EmotionalHook),
		VisualConcept:  firstNonEmpty(p.VisualConcept, fallback.VisualConcept),
		VisualStyle:    style,
		ColorPalette:   p.ColorPalette,
		PlatformCopy: map[creative.Platform]creative.CopyAdaptation{
			input.Platform: {
				Headline:     p.PlatformCopy.Headline,
				PrimaryText:  p.PlatformCopy.PrimaryText,
				Description:  p.PlatformCopy.Description,
				CallToAction: p.PlatformCopy.CallToAction,
			},
		},
	}
	if len(brief.ColorPalette) == 0 {
		brief.ColorPalette = fallback.ColorPalette
	}
	return brief
}

// applyOverrides gives caller-supplied angle/style overrides precedence over
// the model's choice.
func applyOverrides(brief creative.StrategyBrief, input creative.PipelineInput, info *creative.RunInfo) creative.StrategyBrief {
	if style, ok := creative.MapCallerStyle(input.StyleOverride); ok {
		if style != brief.VisualStyle {
			info.Warnf("visual style %s overridden by caller to %s", brief.VisualStyle, style)
		}
		brief.VisualStyle = style
	}
	if input.AngleOverride != "" {
		angle, _ := creative.ParseAngle(input.AngleOverride)
		brief.PrimaryAngle = angle
	}
	return brief
}

// ensurePlatformCopy guarantees the input platform resolves to a populated
// adaptation.
func ensurePlatformCopy(brief *creative.StrategyBrief, input creative.PipelineInput) {
	if brief.PlatformCopy == nil {
		brief.PlatformCopy = map[creative.Platform]creative.CopyAdaptation{}
	}
	adaptation := brief.PlatformCopy[input.Platform]
	defaults := defaultCopy(input.Language)
	if adaptation.Headline == "" {
		adaptation.Headline = firstNonEmpty(brief.KeyMessage, defaults.Headline)
	}
	if adaptation.PrimaryText == "" {
		adaptation.PrimaryText = firstNonEmpty(brief.CoreCopy, defaults.PrimaryText)
	}
	if adaptation.Description == "" {
		adaptation.Description = defaults.Description
	}
	if adaptation.CallToAction == "" {
		adaptation.CallToAction = defaults.CallToAction
	}
	brief.PlatformCopy[input.Platform] = adaptation
}

const strategySystem = `You are a senior creative strategist for performance marketing.
Respond with a single JSON object and nothing else. Keys: primary_angle,
secondary_angle, core_copy, key_message, emotional_hook, visual_concept,
visual_style, color_palette (array), platform_copy (object with headline,
primary_text, description, call_to_action). Angles must be one of: urgency,
scarcity, social_proof, curiosity, authority, value, trust, aspiration.
Visual styles must be one of: photorealistic, illustration, minimalist, lifestyle.
All user-facing copy must be written in the requested language.`

func buildPrompt(input creative.PipelineInput, culture creative.CulturalContext, assets creative.RetrievedAssets) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create an ad strategy for %q (%s) targeting %s on %s. Copy language: %s.\n\n",
		input.OfferName, input.Vertical, input.Country, input.Platform, input.Language)

	fmt.Fprintf(&b, "Cultural context (season: %s):\n", culture.Season)
	if len(culture.VisualCodes) > 0 {
		fmt.Fprintf(&b, "- Visual codes: %s\n", strings.Join(culture.VisualCodes, ", "))
	}
	if len(culture.Taboos) > 0 {
		fmt.Fprintf(&b, "- Avoid: %s\n", strings.Join(culture.Taboos, ", "))
	}
	if len(culture.Trends) > 0 {
		fmt.Fprintf(&b, "- Trends: %s\n", strings.Join(culture.Trends, ", "))
	}
	if culture.Demographics != "" {
		fmt.Fprintf(&b, "- Audience: %s\n", culture.Demographics)
	}

	if len(assets.TopAds) > 0 {
		b.WriteString("\nTop performing past headlines:\n")
		for _, ad := range assets.TopAds {
			fmt.Fprintf(&b, "- %q (CTR %.2f%%, %s)\n", ad.Headline, ad.CTR*100, ad.Country)
		}
	}
	if len(assets.Blacklist) > 0 {
		fmt.Fprintf(&b, "\nForbidden terms (never use): %s\n", strings.Join(assets.Blacklist, ", "))
	}
	return b.String()
}

// defaultCopyTable holds deterministic fallback copy per language. The copy
// shown to end users must be in-market, so the table covers the languages
// the pipeline serves and falls back to English for anything else.
var defaultCopyTable = map[string]creative.CopyAdaptation{
	"es": {
		Headline:     "Una mejor opción te espera",
		PrimaryText:  "Descubre beneficios pensados para ti, con un proceso simple y transparente.",
		Description:  "Conoce más hoy mismo.",
		CallToAction: "Más información",
	},
	"pt": {
		Headline:     "Uma opção melhor espera por você",
		PrimaryText:  "Descubra benefícios pensados para você, com um processo simples e transparente.",
		Description:  "Saiba mais hoje mesmo.",
		CallToAction: "Saiba mais",
	},
	"en": {
		Headline:     "A better option is waiting",
		PrimaryText:  "Discover benefits designed for you, with a simple and transparent process.",
		Description:  "Find out more today.",
		CallToAction: "Learn more",
	},
}

func defaultCopy(language string) creative.CopyAdaptation {
	if c, ok := defaultCopyTable[language]; ok {
		return c
	}
	return defaultCopyTable["en"]
}

// DefaultBrief is the deterministic language-aware strategy used when the
// model cannot produce a usable one.
func DefaultBrief(input creative.PipelineInput) creative.StrategyBrief {
	copyAdaptation := defaultCopy(input.Language)
	return creative.StrategyBrief{
		PrimaryAngle:   creative.DefaultAngle,
		SecondaryAngle: creative.AngleTrust,
		CoreCopy:       copyAdaptation.PrimaryText,
		KeyMessage:     copyAdaptation.Headline,
		EmotionalHook:  copyAdaptation.Headline,
		VisualConcept:  fmt.Sprintf("clean product-focused scene for %s", input.OfferName),
		VisualStyle:    creative.DefaultVisualStyle,
		ColorPalette:   []string{"#1E3A8A", "#FFFFFF", "#F59E0B"},
		PlatformCopy: map[creative.Platform]creative.CopyAdaptation{
			input.Platform: copyAdaptation,
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
