// Package orchestrator sequences the creative pipeline: research and
// retrieval run concurrently, then strategy, prompt translation, and
// assembly run in order, each depending on the full output of its
// predecessor. Research and retrieval failures abort the run; everything
// downstream degrades to best-effort output with warnings.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/launchpro/creative-engine/internal/creative"
	"github.com/launchpro/creative-engine/internal/metrics"
)

// Stage names used in cache-hit reporting and metrics.
const (
	StageResearch  = "research"
	StageRetrieval = "retrieval"
	StageStrategy  = "strategy"
	StagePrompts   = "prompts"
	StageAssembly  = "assembly"
)

// ResearchAgent produces the cultural brief.
type ResearchAgent interface {
	Run(ctx context.Context, input creative.PipelineInput) (creative.CulturalContext, creative.RunInfo, error)
}

// AssetAgent retrieves historical assets.
type AssetAgent interface {
	Run(ctx context.Context, input creative.PipelineInput) (creative.RetrievedAssets, creative.RunInfo, error)
}

// StrategyAgent synthesizes the creative strategy.
type StrategyAgent interface {
	Run(ctx context.Context, input creative.PipelineInput, culture creative.CulturalContext, assets creative.RetrievedAssets) (creative.StrategyBrief, creative.RunInfo, error)
}

// PromptAgent translates the strategy into image prompts.
type PromptAgent interface {
	Run(ctx context.Context, input creative.PipelineInput, brief creative.StrategyBrief, culture creative.CulturalContext) ([]creative.VisualPrompt, creative.RunInfo, error)
}

// AssemblyAgent generates, composites, and persists artifacts.
type AssemblyAgent interface {
	Run(ctx context.Context, input creative.PipelineInput, brief creative.StrategyBrief, prompts []creative.VisualPrompt, assets creative.RetrievedAssets) (creative.CreativePackage, creative.RunInfo, error)
}

// DefaultStrategy is the deterministic brief used when the strategy agent
// itself fails, wired in by the caller so the orchestrator stays free of
// agent internals.
type DefaultStrategy func(input creative.PipelineInput) creative.StrategyBrief

// Orchestrator runs the four-phase pipeline.
type Orchestrator struct {
	research        ResearchAgent
	assets          AssetAgent
	strategy        StrategyAgent
	prompts         PromptAgent
	assembly        AssemblyAgent
	defaultStrategy DefaultStrategy
	logger          *zap.Logger
	now             func() time.Time
}

func New(research ResearchAgent, assets AssetAgent, strategy StrategyAgent, prompts PromptAgent, assembly AssemblyAgent, defaultStrategy DefaultStrategy, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		research:        research,
		assets:          assets,
		strategy:        strategy,
		prompts:         prompts,
		assembly:        assembly,
		defaultStrategy: defaultStrategy,
		logger:          logger,
		now:             time.Now,
	}
}

// Generate runs one creative pipeline end to end.
func (o *Orchestrator) Generate(ctx context.Context, input creative.PipelineInput) creative.PipelineResult {
	if err := validate(input); err != nil {
		return failure(*creative.NewAgentError("orchestrator", creative.ErrInvalidInput, false, "%v", err))
	}

	start := o.now()
	metrics.PipelinesStarted.WithLabelValues(string(input.Platform)).Inc()
	log := o.logger.With(
		zap.String("offer_id", input.OfferID),
		zap.String("country", input.Country),
		zap.String("platform", string(input.Platform)))
	log.Info("pipeline started", zap.Bool("use_cache", input.UseCache))

	var (
		cacheHits []string
		calls     []creative.CallRecord
		warnings  []string
	)
	collect := func(stage string, info creative.RunInfo) {
		if info.CacheHit {
			cacheHits = append(cacheHits, stage)
		}
		calls = append(calls, info.Calls...)
		warnings = append(warnings, info.Warnings...)
	}

	// Phase 1: research and retrieval, wait-all.
	var (
		culture      creative.CulturalContext
		assets       creative.RetrievedAssets
		researchInfo creative.RunInfo
		assetInfo    creative.RunInfo
		researchErr  error
		assetErr     error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer observeStage(StageResearch, o.now())
		culture, researchInfo, researchErr = o.research.Run(gctx, input)
		return nil
	})
	g.Go(func() error {
		defer observeStage(StageRetrieval, o.now())
		assets, assetInfo, assetErr = o.assets.Run(gctx, input)
		return nil
	})
	_ = g.Wait()
	collect(StageResearch, researchInfo)
	collect(StageRetrieval, assetInfo)

	if researchErr != nil || assetErr != nil {
		result := failure(collectErrors(researchErr, assetErr)...)
		result.Warnings = warnings
		o.finish(log, start, input, result)
		return result
	}

	// Phase 2: strategy. A failing strategy agent is recovered with the
	// deterministic default brief.
	stageStart := o.now()
	brief, strategyInfo, err := o.strategy.Run(ctx, input, culture, assets)
	observeStage(StageStrategy, stageStart)
	collect(StageStrategy, strategyInfo)
	if err != nil {
		log.Warn("strategy agent failed, continuing with default strategy", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("strategy stage failed (%v); default strategy used", err))
		brief = o.defaultStrategy(input)
	}

	// Phase 3: prompt translation, recovered the same way via the agent's
	// own template fallback.
	stageStart = o.now()
	visualPrompts, promptInfo, err := o.prompts.Run(ctx, input, brief, culture)
	observeStage(StagePrompts, stageStart)
	collect(StagePrompts, promptInfo)
	if err != nil {
		log.Warn("prompt agent failed, continuing without model prompts", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("prompt translation failed (%v)", err))
	}

	// Phase 4: assembly degrades internally; an error here still yields a
	// copy-only package rather than a failed run.
	stageStart = o.now()
	pkg, assemblyInfo, err := o.assembly.Run(ctx, input, brief, visualPrompts, assets)
	observeStage(StageAssembly, stageStart)
	collect(StageAssembly, assemblyInfo)
	if err != nil {
		log.Warn("assembly failed, returning copy-only package", zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("assembly failed (%v); copy-only package returned", err))
		pkg = copyOnlyPackage(input, brief, assets)
	}

	pkg.Metadata = creative.PackageMetadata{
		CacheHits:      orEmpty(cacheHits),
		Calls:          calls,
		TotalCostUSD:   totalCost(calls),
		GenerationTime: o.now().Sub(start),
	}

	result := creative.PipelineResult{
		Success:  true,
		Package:  &pkg,
		Warnings: warnings,
	}
	o.finish(log, start, input, result)
	return result
}

func (o *Orchestrator) finish(log *zap.Logger, start time.Time, input creative.PipelineInput, result creative.PipelineResult) {
	elapsed := o.now().Sub(start)
	status := "ok"
	if !result.Success {
		status = "failed"
	}
	metrics.PipelinesCompleted.WithLabelValues(string(input.Platform), status).Inc()
	metrics.PipelineDuration.WithLabelValues(string(input.Platform)).Observe(elapsed.Seconds())

	if result.Success {
		log.Info("pipeline completed",
			zap.Duration("elapsed", elapsed),
			zap.Int("artifacts", len(result.Package.Artifacts)),
			zap.Strings("cache_hits", result.Package.Metadata.CacheHits),
			zap.Float64("cost_usd", result.Package.Metadata.TotalCostUSD),
			zap.Int("warnings", len(result.Warnings)))
		return
	}
	log.Warn("pipeline failed",
		zap.Duration("elapsed", elapsed),
		zap.Int("errors", len(result.Errors)))
}

func validate(input creative.PipelineInput) error {
	switch {
	case input.OfferID == "":
		return errors.New("offer_id is required")
	case input.OfferName == "":
		return errors.New("offer_name is required")
	case input.Country == "":
		return errors.New("country is required")
	case input.Language == "":
		return errors.New("language is required")
	case !input.Platform.Valid():
		return fmt.Errorf("unknown platform %q", input.Platform)
	}
	return nil
}

func observeStage(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func collectErrors(errs ...error) []creative.AgentError {
	var out []creative.AgentError
	for _, err := range errs {
		if err == nil {
			continue
		}
		var agentErr *creative.AgentError
		if errors.As(err, &agentErr) {
			out = append(out, *agentErr)
			continue
		}
		out = append(out, *creative.NewAgentError("orchestrator", creative.ErrModel, false, "%v", err))
	}
	return out
}

func failure(errs ...creative.AgentError) creative.PipelineResult {
	return creative.PipelineResult{Success: false, Errors: errs}
}

// copyOnlyPackage builds the degraded package used when assembly errors out
// entirely. The copy path stays compliant: it reads only validated strategy
// output and approved snippets.
func copyOnlyPackage(input creative.PipelineInput, brief creative.StrategyBrief, assets creative.RetrievedAssets) creative.CreativePackage {
	adaptation := brief.PlatformCopy[input.Platform]
	headline := input.CopyOverride
	if headline == "" {
		headline = brief.KeyMessage
	}
	if headline == "" {
		headline = adaptation.Headline
	}
	cta := adaptation.CallToAction
	for _, s := range assets.ApprovedCopy {
		if headline == "" && s.Type == creative.SnippetHeadline {
			headline = s.Text
		}
		if cta == "" && s.Type == creative.SnippetCTA {
			cta = s.Text
		}
	}
	return creative.CreativePackage{
		Copy: creative.CopyBundle{
			Headline:     headline,
			PrimaryText:  adaptation.PrimaryText,
			Description:  adaptation.Description,
			CallToAction: cta,
			Language:     input.Language,
		},
		Artifacts: []creative.CreativeArtifact{},
		Strategy: creative.StrategySummary{
			Angle:         brief.PrimaryAngle,
			VisualStyle:   brief.VisualStyle,
			KeyMessage:    brief.KeyMessage,
			VisualConcept: brief.VisualConcept,
		},
	}
}

func totalCost(calls []creative.CallRecord) float64 {
	var total float64
	for _, c := range calls {
		total += c.CostUSD
	}
	return total
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
