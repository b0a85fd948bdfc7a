package assembly

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/launchpro/creative-engine/internal/creative"
	"github.com/launchpro/creative-engine/internal/imagegen"
	"github.com/launchpro/creative-engine/internal/overlay"
	"github.com/launchpro/creative-engine/internal/pricing"
)

// fakeProvider returns a solid-color PNG sized to the requested aspect.
type fakeProvider struct {
	name     string
	err      error
	failN    int // fail the first N calls with err, then succeed
	calls    int
	requests []imagegen.Request
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.name + "-model" }

func (f *fakeProvider) Generate(_ context.Context, req imagegen.Request) (*imagegen.Result, error) {
	f.calls++
	f.requests = append(f.requests, req)
	if f.err != nil && (f.failN == 0 || f.calls <= f.failN) {
		return nil, f.err
	}
	img := image.NewRGBA(image.Rect(0, 0, req.Aspect.Width/4, req.Aspect.Height/4))
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.Set(x, y, color.RGBA{R: 80, G: 120, B: 200, A: 255})
		}
	}
	png, err := overlay.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &imagegen.Result{PNG: png, Model: f.Model(), Provider: f.name, Latency: 5 * time.Millisecond}, nil
}

// memStore keeps artifacts in memory.
type memStore struct {
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func (m *memStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if _, ok := m.objects[key]; !ok {
		return "", errors.New("missing object")
	}
	return "https://cdn.test/" + key + "?sig=abc", nil
}

func testInput() creative.PipelineInput {
	return creative.PipelineInput{
		OfferID: "offer-1", OfferName: "Car Loans",
		Country: "CO", Language: "es", Platform: creative.PlatformMeta,
		TextOverlay: true,
	}
}

func testBrief() creative.StrategyBrief {
	return creative.StrategyBrief{
		PrimaryAngle:  creative.AngleSocialProof,
		KeyMessage:    "Tu crédito aprobado en 24 horas",
		VisualConcept: "driver with new car",
		VisualStyle:   creative.StyleLifestyle,
		PlatformCopy: map[creative.Platform]creative.CopyAdaptation{
			creative.PlatformMeta: {
				Headline:     "Tu crédito vehicular",
				PrimaryText:  "Miles ya lo hicieron.",
				Description:  "Tasas bajas.",
				CallToAction: "Solicita ahora",
			},
		},
	}
}

func testPrompts() []creative.VisualPrompt {
	return []creative.VisualPrompt{
		{Prompt: "square scene", AspectRatio: creative.RatioSquare, Style: creative.StyleLifestyle},
		{Prompt: "portrait scene", AspectRatio: creative.RatioPortrait, Style: creative.StyleLifestyle},
	}
}

func newAgent(t *testing.T, primary, fallback imagegen.Provider, store *memStore) *Agent {
	t.Helper()
	renderer, err := overlay.NewRenderer()
	require.NoError(t, err)
	table := pricing.Load("", zaptest.NewLogger(t))
	t.Cleanup(table.Close)
	return New(primary, fallback, renderer, store, table,
		Config{MaxImages: 4, RatePerMinute: 600000}, zaptest.NewLogger(t))
}

func TestRunProducesOverlaidArtifacts(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	store := newMemStore()
	agent := newAgent(t, primary, nil, store)

	pkg, info, err := agent.Run(context.Background(), testInput(), testBrief(), testPrompts(), creative.RetrievedAssets{})
	require.NoError(t, err)

	require.Len(t, pkg.Artifacts, 2)
	for _, a := range pkg.Artifacts {
		assert.True(t, a.HasTextOverlay)
		assert.Contains(t, a.URL, "sig=")
		assert.NotEmpty(t, store.objects[a.StorageKey])
	}
	// The copy bundle carries the strategy's key message, not prompt text.
	assert.Equal(t, "Tu crédito aprobado en 24 horas", pkg.Copy.Headline)
	assert.Equal(t, "Solicita ahora", pkg.Copy.CallToAction)
	assert.Len(t, info.Calls, 2)
}

func TestRunQuotaSwitchesToFallbackForWholeBatch(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: imagegen.ErrQuotaExhausted}
	fallback := &fakeProvider{name: "fallback"}
	agent := newAgent(t, primary, fallback, newMemStore())

	pkg, info, err := agent.Run(context.Background(), testInput(), testBrief(), testPrompts(), creative.RetrievedAssets{})
	require.NoError(t, err)

	// Primary aborted after the first quota error; fallback ran the batch.
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 2, fallback.calls)
	assert.Len(t, pkg.Artifacts, 2)
	for _, c := range info.Calls {
		assert.Equal(t, "fallback", c.Provider)
	}
	assert.NotEmpty(t, info.Warnings)
}

func TestRunTotalImagingFailureYieldsCopyOnly(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: imagegen.ErrQuotaExhausted}
	fallback := &fakeProvider{name: "fallback", err: errors.New("unavailable")}
	agent := newAgent(t, primary, fallback, newMemStore())

	pkg, info, err := agent.Run(context.Background(), testInput(), testBrief(), testPrompts(), creative.RetrievedAssets{})
	require.NoError(t, err)

	assert.Empty(t, pkg.Artifacts)
	assert.NotEmpty(t, pkg.Copy.Headline)
	assert.NotEmpty(t, info.Warnings)
}

func TestRunNonQuotaErrorsSkipImageAndContinue(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: errors.New("transient"), failN: 1}
	agent := newAgent(t, primary, nil, newMemStore())

	pkg, info, err := agent.Run(context.Background(), testInput(), testBrief(), testPrompts(), creative.RetrievedAssets{})
	require.NoError(t, err)

	assert.Equal(t, 2, primary.calls)
	assert.Len(t, pkg.Artifacts, 1)
	assert.NotEmpty(t, info.Warnings)
}

func TestRunRespectsImageCountCap(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	agent := newAgent(t, primary, nil, newMemStore())
	input := testInput()
	input.ImageCount = 10

	pkg, _, err := agent.Run(context.Background(), input, testBrief(), testPrompts(), creative.RetrievedAssets{})
	require.NoError(t, err)

	assert.Len(t, pkg.Artifacts, 4)
	// Both required ratios are covered before variations repeat.
	ratios := map[string]int{}
	for _, a := range pkg.Artifacts {
		ratios[a.AspectRatio.Name]++
	}
	assert.Equal(t, 2, ratios["1:1"])
	assert.Equal(t, 2, ratios["9:16"])
}

func TestRunWithoutOverlay(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	agent := newAgent(t, primary, nil, newMemStore())
	input := testInput()
	input.TextOverlay = false

	pkg, _, err := agent.Run(context.Background(), input, testBrief(), testPrompts(), creative.RetrievedAssets{})
	require.NoError(t, err)
	for _, a := range pkg.Artifacts {
		assert.False(t, a.HasTextOverlay)
	}
}

func TestSelectCopyPriority(t *testing.T) {
	brief := testBrief()
	assets := creative.RetrievedAssets{ApprovedCopy: []creative.CopySnippet{
		{Type: creative.SnippetHeadline, Text: "Snippet headline"},
		{Type: creative.SnippetCTA, Text: "Snippet CTA"},
	}}

	// Caller override beats everything.
	input := testInput()
	input.CopyOverride = "Literal caller headline"
	assert.Equal(t, "Literal caller headline", SelectCopy(input, brief, assets).Headline)

	// Key message beats the platform adaptation.
	input.CopyOverride = ""
	assert.Equal(t, "Tu crédito aprobado en 24 horas", SelectCopy(input, brief, assets).Headline)

	// Platform adaptation beats the snippet.
	brief.KeyMessage = ""
	assert.Equal(t, "Tu crédito vehicular", SelectCopy(input, brief, assets).Headline)

	// Snippet is the last resort.
	brief.PlatformCopy = nil
	assert.Equal(t, "Snippet headline", SelectCopy(input, brief, assets).Headline)
	assert.Equal(t, "Snippet CTA", SelectCopy(input, brief, assets).CallToAction)
}

func TestImagePromptNeverReachesCopyBundle(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	agent := newAgent(t, primary, nil, newMemStore())

	pkg, _, err := agent.Run(context.Background(), testInput(), testBrief(), testPrompts(), creative.RetrievedAssets{})
	require.NoError(t, err)

	for _, req := range primary.requests {
		assert.NotEqual(t, req.Prompt, pkg.Copy.Headline)
		assert.NotContains(t, pkg.Copy.Headline, req.Prompt)
	}
}
