package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/launchpro/creative-engine/internal/creative"
)

type fakePipeline struct {
	result creative.PipelineResult
	got    creative.PipelineInput
}

func (f *fakePipeline) Generate(_ context.Context, input creative.PipelineInput) creative.PipelineResult {
	f.got = input
	return f.result
}

func newServer(t *testing.T, p Pipeline) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(p, time.Minute, zaptest.NewLogger(t)).RegisterRoutes(mux)
	return mux
}

const requestBody = `{
	"offer_id": "car-loans-co",
	"offer_name": "Car Loans",
	"vertical": "finance",
	"country": "CO",
	"language": "es",
	"platform": "META",
	"use_cache": true,
	"text_overlay": true
}`

func TestGenerateSuccess(t *testing.T) {
	pipeline := &fakePipeline{result: creative.PipelineResult{
		Success: true,
		Package: &creative.CreativePackage{
			Copy: creative.CopyBundle{Headline: "Titular", Language: "es"},
		},
	}}
	mux := newServer(t, pipeline)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/creatives/generate", strings.NewReader(requestBody)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "car-loans-co", pipeline.got.OfferID)
	assert.True(t, pipeline.got.UseCache)

	var result creative.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "Titular", result.Package.Copy.Headline)
}

func TestGenerateInvalidInputIs400(t *testing.T) {
	pipeline := &fakePipeline{result: creative.PipelineResult{
		Success: false,
		Errors: []creative.AgentError{
			*creative.NewAgentError("orchestrator", creative.ErrInvalidInput, false, "country is required"),
		},
	}}
	mux := newServer(t, pipeline)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/creatives/generate", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeneratePipelineFailureIs502(t *testing.T) {
	pipeline := &fakePipeline{result: creative.PipelineResult{
		Success: false,
		Errors: []creative.AgentError{
			*creative.NewAgentError("cultural_research", creative.ErrModel, false, "provider down"),
		},
	}}
	mux := newServer(t, pipeline)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/creatives/generate", strings.NewReader(requestBody)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGenerateRejectsBadJSON(t *testing.T) {
	mux := newServer(t, &fakePipeline{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/creatives/generate", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateRejectsGet(t *testing.T) {
	mux := newServer(t, &fakePipeline{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/creatives/generate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
