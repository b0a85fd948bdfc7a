package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/launchpro/creative-engine/internal/creative"
	"github.com/launchpro/creative-engine/internal/llm"
	"github.com/launchpro/creative-engine/internal/pricing"
)

type stubProvider struct {
	text  string
	err   error
	calls int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(_ context.Context, _ llm.Request) (*llm.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{
		Text:         s.text,
		Model:        "stub-model",
		Provider:     "stub",
		InputTokens:  200,
		OutputTokens: 150,
		Latency:      20 * time.Millisecond,
	}, nil
}

func testInput() creative.PipelineInput {
	return creative.PipelineInput{
		OfferID:   "offer-1",
		OfferName: "Car Loans",
		Vertical:  "finance",
		Country:   "CO",
		Language:  "es",
		Platform:  creative.PlatformMeta,
	}
}

func newAgent(t *testing.T, p llm.Provider) *Agent {
	t.Helper()
	table := pricing.Load("", zaptest.NewLogger(t))
	t.Cleanup(table.Close)
	return New(p, nil, table, zaptest.NewLogger(t))
}

func TestRunParsesModelJSON(t *testing.T) {
	provider := &stubProvider{text: `{
		"timezone": "America/Bogota",
		"visual_codes": ["urban street scenes", "family moments"],
		"color_preferences": ["yellow", "blue"],
		"taboos": ["gambling imagery"],
		"trends": ["fintech adoption"],
		"demographics": "young professionals in Bogota and Medellin"
	}`}
	agent := newAgent(t, provider)

	brief, info, err := agent.Run(context.Background(), testInput())
	require.NoError(t, err)

	assert.Equal(t, "CO", brief.Country)
	assert.Equal(t, "es", brief.Language)
	assert.Equal(t, "America/Bogota", brief.Timezone)
	assert.Contains(t, brief.VisualCodes, "urban street scenes")
	assert.NotEmpty(t, brief.Season)
	require.Len(t, info.Calls, 1)
	assert.Greater(t, info.Calls[0].CostUSD, 0.0)
	assert.Empty(t, info.Warnings)
}

func TestRunSubstitutesDefaultBriefOnGarbage(t *testing.T) {
	provider := &stubProvider{text: "I could not find structured data, sorry!"}
	agent := newAgent(t, provider)

	brief, info, err := agent.Run(context.Background(), testInput())
	require.NoError(t, err)

	// Default brief is populated, not empty.
	assert.NotEmpty(t, brief.VisualCodes)
	assert.NotEmpty(t, brief.Taboos)
	assert.Contains(t, brief.Demographics, "CO")
	require.Len(t, info.Warnings, 1)
}

func TestRunPropagatesModelFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("connection refused")}
	agent := newAgent(t, provider)

	_, _, err := agent.Run(context.Background(), testInput())
	require.Error(t, err)

	var agentErr *creative.AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, creative.ErrModel, agentErr.Code)
	assert.False(t, agentErr.Recoverable)
}

func TestSeasonIsDeterministic(t *testing.T) {
	provider := &stubProvider{text: `{"demographics": "x"}`}
	agent := newAgent(t, provider)
	agent.now = func() time.Time { return time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC) }

	// Colombia sits in the deterministic hemisphere table; July is not
	// taken from the model.
	brief, _, err := agent.Run(context.Background(), testInput())
	require.NoError(t, err)
	assert.Equal(t, creative.SeasonFor("CO", time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC)), brief.Season)
}
