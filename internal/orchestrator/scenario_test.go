package orchestrator

import (
	"context"
	"hash/fnv"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/launchpro/creative-engine/internal/agents/assembly"
	"github.com/launchpro/creative-engine/internal/agents/assets"
	"github.com/launchpro/creative-engine/internal/agents/prompts"
	"github.com/launchpro/creative-engine/internal/agents/research"
	"github.com/launchpro/creative-engine/internal/agents/strategy"
	"github.com/launchpro/creative-engine/internal/creative"
	"github.com/launchpro/creative-engine/internal/imagegen"
	"github.com/launchpro/creative-engine/internal/llm"
	"github.com/launchpro/creative-engine/internal/overlay"
	"github.com/launchpro/creative-engine/internal/pricing"
	"github.com/launchpro/creative-engine/internal/semcache"
)

// End-to-end pipeline scenarios with real agents and mocked external
// services.

// hashEmbedder returns a deterministic vector per text.
type hashEmbedder struct{}

func (hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	v := make([]float32, 8)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(seed%1000) / 1000
	}
	return v, nil
}

// fixtureProvider routes each reasoning call to a canned fixture and burns a
// fixed latency, so cache hits are measurably faster.
type fixtureProvider struct {
	delay time.Duration
	calls int
}

func (f *fixtureProvider) Name() string { return "fixture" }

func (f *fixtureProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	time.Sleep(f.delay)
	var text string
	switch {
	case req.SearchGrounded:
		text = researchFixture
	case strings.Contains(req.System, "creative strategist"):
		text = strategyFixture
	default:
		text = promptsFixture
	}
	return &llm.Response{
		Text: text, Model: "fixture-model", Provider: "fixture",
		InputTokens: 300, OutputTokens: 200, Latency: f.delay,
	}, nil
}

const researchFixture = `{
	"timezone": "America/Bogota",
	"visual_codes": ["urban street scenes"],
	"color_preferences": ["yellow", "blue"],
	"taboos": ["gambling imagery"],
	"trends": ["fintech adoption"],
	"demographics": "young professionals"
}`

const strategyFixture = `{
	"primary_angle": "social_proof",
	"secondary_angle": "value",
	"core_copy": "Miles de colombianos ya financiaron su carro.",
	"key_message": "Tu crédito vehicular aprobado en 24 horas",
	"emotional_hook": "El carro que quieres",
	"visual_concept": "driver receiving car keys",
	"visual_style": "lifestyle",
	"color_palette": ["#0057B8"],
	"platform_copy": {
		"headline": "Tu crédito vehicular aprobado en 24 horas",
		"primary_text": "Miles de colombianos ya lo hicieron.",
		"description": "Tasas bajas.",
		"call_to_action": "Solicita ahora"
	}
}`

const promptsFixture = `{"prompts": [
	{"aspect_ratio": "1:1", "prompt": "driver with car keys, square composition"},
	{"aspect_ratio": "9:16", "prompt": "driver with car keys, vertical composition"}
]}`

type fixtureStore struct{}

func (fixtureStore) TopAds(context.Context, string, string, int) ([]creative.TopAd, error) {
	return []creative.TopAd{{ID: "ad-1", Headline: "Aprueba tu crédito", Country: "CO", CTR: 0.04}}, nil
}

func (fixtureStore) ApprovedSnippets(context.Context, string, string) ([]creative.CopySnippet, error) {
	return nil, nil
}

func (fixtureStore) SimilarCampaigns(context.Context, string, string, creative.Platform, int) ([]creative.SimilarCampaign, error) {
	return nil, nil
}

type fixtureImages struct{ calls int }

func (f *fixtureImages) Name() string  { return "fiximg" }
func (f *fixtureImages) Model() string { return "fiximg-model" }

func (f *fixtureImages) Generate(_ context.Context, req imagegen.Request) (*imagegen.Result, error) {
	f.calls++
	img := image.NewRGBA(image.Rect(0, 0, req.Aspect.Width/4, req.Aspect.Height/4))
	png, err := overlay.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &imagegen.Result{PNG: png, Model: f.Model(), Provider: f.Name(), Latency: time.Millisecond}, nil
}

type scenarioStore struct{ objects map[string][]byte }

func (s *scenarioStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.objects[key] = data
	return nil
}

func (s *scenarioStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://cdn.test/" + key, nil
}

func buildPipeline(t *testing.T, cache *semcache.Cache, llmDelay time.Duration) (*Orchestrator, *fixtureProvider) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	table := pricing.Load("", logger)
	t.Cleanup(table.Close)

	provider := &fixtureProvider{delay: llmDelay}
	renderer, err := overlay.NewRenderer()
	require.NoError(t, err)

	asm := assembly.New(&fixtureImages{}, nil, renderer, &scenarioStore{objects: map[string][]byte{}},
		table, assembly.Config{MaxImages: 4, RatePerMinute: 600000}, logger)

	o := New(
		research.New(provider, cache, table, logger),
		assets.New(fixtureStore{}, logger),
		strategy.New(provider, cache, table, logger),
		prompts.New(provider, cache, table, logger),
		asm,
		strategy.DefaultBrief,
		logger,
	)
	return o, provider
}

func carLoansInput(useCache bool) creative.PipelineInput {
	return creative.PipelineInput{
		OfferID: "car-loans-co", OfferName: "Car Loans",
		Vertical: "finance", Country: "CO", Language: "es",
		Platform: creative.PlatformMeta, UseCache: useCache, TextOverlay: true,
	}
}

func TestScenarioCarLoansColombiaNoCache(t *testing.T) {
	o, _ := buildPipeline(t, nil, 0)

	result := o.Generate(context.Background(), carLoansInput(false))
	require.True(t, result.Success)
	require.NotNil(t, result.Package)

	// Spanish-language headline, straight from the strategy fixture.
	assert.Equal(t, "Tu crédito vehicular aprobado en 24 horas", result.Package.Copy.Headline)

	// Artifacts cover exactly the platform-required aspect ratios.
	require.NotEmpty(t, result.Package.Artifacts)
	assert.LessOrEqual(t, len(result.Package.Artifacts), 4)
	got := map[string]bool{}
	for _, a := range result.Package.Artifacts {
		got[a.AspectRatio.Name] = true
		assert.True(t, a.HasTextOverlay)
	}
	assert.Equal(t, map[string]bool{"1:1": true, "9:16": true}, got)

	assert.Equal(t, []string{}, result.Package.Metadata.CacheHits)
	assert.Greater(t, result.Package.Metadata.TotalCostUSD, 0.0)
}

func TestScenarioSecondRunHitsEveryCacheableStage(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := semcache.New(semcache.DefaultConfig(mr.Addr()), hashEmbedder{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	o, provider := buildPipeline(t, cache, 40*time.Millisecond)
	input := carLoansInput(true)

	first := o.Generate(context.Background(), input)
	require.True(t, first.Success)
	assert.Empty(t, first.Package.Metadata.CacheHits)
	assert.Equal(t, 3, provider.calls)

	second := o.Generate(context.Background(), input)
	require.True(t, second.Success)

	assert.ElementsMatch(t,
		[]string{StageResearch, StageStrategy, StagePrompts},
		second.Package.Metadata.CacheHits)
	// No new reasoning calls on the second run.
	assert.Equal(t, 3, provider.calls)
	assert.Less(t, second.Package.Metadata.GenerationTime, first.Package.Metadata.GenerationTime)
}
