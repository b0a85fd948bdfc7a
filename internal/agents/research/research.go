// Package research implements the cultural research agent. It produces a
// country/vertical brief from one search-grounded reasoning call, cached per
// day so repeated requests for the same market are free.
package research

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

const agentName = "cultural_research"

// Agent issues the research call and shapes the cultural brief.
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

// researchPayload is the JSON shape requested from the model.
type researchPayload struct {
	Timezone         string   `json:"timezone"`
	VisualCodes      []string `json:"visual_codes"`
	ColorPreferences []string `json:"color_preferences"`
	Taboos           []string `json:"taboos"`
	Trends           []string `json:"trends"`
	Demographics     string   `json:"demographics"`
}

// Run returns the cultural brief for the input's market. A model call that
// fails outright is reported as an error; a call that succeeds but returns
// unusable JSON is absorbed into a conservative default brief so downstream
// stages never block on this agent.
func (a *Agent) Run(ctx context.Context, input creative.PipelineInput) (creative.CulturalContext, creative.RunInfo, error) {
	var info creative.RunInfo

	cache := a.cache
	if !input.UseCache {
		cache = nil
	}

	day := a.now().UTC().Format("2006-01-02")
	exactKey := fmt.Sprintf("%s:%s:%s", input.Country, input.Vertical, day)
	query := fmt.Sprintf("cultural context for %s advertising in %s", input.Vertical, input.Country)

	brief, lookup, err := semcache.GetOrCompute(ctx, cache, semcache.CategoryResearch, exactKey, query,
		func(ctx context.Context) (creative.CulturalContext, error) {
			return a.research(ctx, input, &info)
		})
	if err != nil {
		return creative.CulturalContext{}, info, creative.NewAgentError(agentName, creative.ErrModel, false,
			"research call failed: %v", err)
	}
	info.CacheHit = lookup.Hit
	if lookup.CacheError != nil {
		a.logger.Warn("research cache degraded", zap.Error(lookup.CacheError))
	}
	return brief, info, nil
}

func (a *Agent) research(ctx context.Context, input creative.PipelineInput, info *creative.RunInfo) (creative.CulturalContext, error) {
	start := a.now()
	resp, err := a.provider.Generate(ctx, llm.Request{
		System:         researchSystem,
		Prompt:         a.buildPrompt(input),
		Temperature:    0.3,
		MaxTokens:      1200,
		JSONOnly:       true,
		SearchGrounded: true,
	})
	if err != nil {
		metrics.RecordModelCall(a.provider.Name(), "error", a.now().Sub(start).Seconds())
		return creative.CulturalContext{}, err
	}
	metrics.RecordModelCall(a.provider.Name(), "ok", resp.Latency.Seconds())

	cost := a.pricing.CostForSplit(resp.Model, resp.InputTokens, resp.OutputTokens)
	info.AddCall(creative.CallRecord{
		Agent:    agentName,
		Provider: resp.Provider,
		Model:    resp.Model,
		Latency:  resp.Latency,
		CostUSD:  cost,
	})

	var payload researchPayload
	if perr := modeljson.Decode(resp.Text, &payload); perr != nil {
		a.logger.Warn("research response unusable, using default brief",
			zap.String("country", input.Country),
			zap.Error(perr))
		info.Warnf("cultural research returned unusable JSON; default brief substituted")
		payload = defaultPayload(input.Country)
	}
	return a.toContext(input, payload), nil
}

func (a *Agent) toContext(input creative.PipelineInput, p researchPayload) creative.CulturalContext {
	return creative.CulturalContext{
		Country:          input.Country,
		Language:         input.Language,
		Timezone:         p.Timezone,
		Season:           creative.SeasonFor(input.Country, a.now()),
		VisualCodes:      p.VisualCodes,
		ColorPreferences: p.ColorPreferences,
		Taboos:           p.Taboos,
		Trends:           p.Trends,
		Demographics:     p.Demographics,
		ResearchedAt:     a.now().UTC(),
	}
}

const researchSystem = `You are a market research analyst specializing in digital advertising.
Respond with a single JSON object and nothing else. Keys: timezone (IANA name),
visual_codes (array of strings), color_preferences (array of strings),
taboos (array of strings), trends (array of strings), demographics (string).`

func (a *Agent) buildPrompt(input creative.PipelineInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research current advertising context for country %s in the %s vertical.\n", input.Country, input.Vertical)
	fmt.Fprintf(&b, "The offer being advertised: %s", input.OfferName)
	if input.Description != "" {
		fmt.Fprintf(&b, " (%s)", input.Description)
	}
	b.WriteString(".\n")
	fmt.Fprintf(&b, "Target language: %s. Report visual codes and color preferences that resonate locally, ", input.Language)
	b.WriteString("cultural taboos to avoid in imagery and copy, current consumer trends, and a one-paragraph target demographic summary.")
	return b.String()
}

// defaultPayload is the conservative vertical-agnostic brief used when the
// model's answer cannot be parsed.
func defaultPayload(country string) researchPayload {
	return researchPayload{
		Timezone:         "UTC",
		VisualCodes:      []string{"clean composition", "natural lighting", "authentic people"},
		ColorPreferences: []string{"blue", "white", "warm neutrals"},
		Taboos:           []string{"political imagery", "religious symbols", "explicit content"},
		Trends:           []string{"mobile-first shopping", "short-form video"},
		Demographics:     fmt.Sprintf("adults 25-45 in %s with mobile internet access", country),
	}
}
