package creative

import (
	"time"
)

// Platform identifies the ad network a creative is produced for.
type Platform string

const (
	PlatformMeta   Platform = "META"
	PlatformTikTok Platform = "TIKTOK"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformMeta || p == PlatformTikTok
}

// AspectRatio is a named image aspect ratio with target pixel dimensions.
type AspectRatio struct {
	Name   string `json:"name"` // e.g. "1:1", "9:16"
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var (
	RatioSquare   = AspectRatio{Name: "1:1", Width: 1080, Height: 1080}
	RatioPortrait = AspectRatio{Name: "9:16", Width: 1080, Height: 1920}
)

// RequiredAspectRatios returns the aspect ratios a platform expects for a
// standard placement set.
func RequiredAspectRatios(p Platform) []AspectRatio {
	switch p {
	case PlatformTikTok:
		return []AspectRatio{RatioPortrait}
	default:
		return []AspectRatio{RatioSquare, RatioPortrait}
	}
}

// PipelineInput is the immutable request handed to the orchestrator. It is
// created once per generation request and never mutated by the agents.
type PipelineInput struct {
	OfferID     string   `json:"offer_id"`
	OfferName   string   `json:"offer_name"`
	Vertical    string   `json:"vertical"`
	Description string   `json:"description"`
	Country     string   `json:"country"`  // ISO 3166-1 alpha-2
	Language    string   `json:"language"` // ISO 639-1
	Platform    Platform `json:"platform"`

	// Optional caller overrides.
	AngleOverride string `json:"angle_override,omitempty"`
	StyleOverride string `json:"style_override,omitempty"`
	CopyOverride  string `json:"copy_override,omitempty"` // literal headline; bypasses all generated copy

	UseCache    bool `json:"use_cache"`
	ImageCount  int  `json:"image_count,omitempty"`  // capped by assembly config
	TextOverlay bool `json:"text_overlay"`
}

// CulturalContext is the country/vertical brief produced by the research
// agent. Cached by (country, vertical, date).
type CulturalContext struct {
	Country          string    `json:"country"`
	Language         string    `json:"language"`
	Timezone         string    `json:"timezone"`
	Season           Season    `json:"season"`
	VisualCodes      []string  `json:"visual_codes"`
	ColorPreferences []string  `json:"color_preferences"`
	Taboos           []string  `json:"taboos"`
	Trends           []string  `json:"trends"`
	Demographics     string    `json:"demographics"`
	ResearchedAt     time.Time `json:"researched_at"`
}

// SnippetType tags a pre-approved copy snippet with the slot it may fill.
type SnippetType string

const (
	SnippetHeadline    SnippetType = "headline"
	SnippetPrimaryText SnippetType = "primaryText"
	SnippetDescription SnippetType = "description"
	SnippetCTA         SnippetType = "cta"
)

// CopySnippet is a compliance-reviewed piece of text usable as ad copy
// without further review.
type CopySnippet struct {
	Type     SnippetType `json:"type"`
	Text     string      `json:"text"`
	Language string      `json:"language"`
	Vertical string      `json:"vertical"`
}

// TopAd is a historical top-performing ad returned by the retrieval agent.
type TopAd struct {
	ID         string  `json:"id"`
	Headline   string  `json:"headline"`
	Country    string  `json:"country"`
	Vertical   string  `json:"vertical"`
	CTR        float64 `json:"ctr"`
	Similarity float64 `json:"similarity"`
}

// SimilarCampaign references a past campaign with comparable targeting.
type SimilarCampaign struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Platform string `json:"platform"`
}

// RetrievedAssets bundles the three independent retrievals from the asset
// agent. Never cached: recomputing from the system of record is cheap and
// freshness matters more than cost.
type RetrievedAssets struct {
	TopAds           []TopAd           `json:"top_ads"`
	ApprovedCopy     []CopySnippet     `json:"approved_copy"`
	Blacklist        []string          `json:"blacklist"`
	SimilarCampaigns []SimilarCampaign `json:"similar_campaigns"`
}

// CopyAdaptation is the per-platform copy block inside a strategy brief.
type CopyAdaptation struct {
	Headline     string `json:"headline"`
	PrimaryText  string `json:"primary_text"`
	Description  string `json:"description"`
	CallToAction string `json:"call_to_action"`
}

// StrategyBrief is the creative strategy synthesized from the cultural brief
// and retrieved assets. Every field with an enum type is guaranteed to hold
// one of the closed values.
type StrategyBrief struct {
	PrimaryAngle   Angle                       `json:"primary_angle"`
	SecondaryAngle Angle                       `json:"secondary_angle"`
	CoreCopy       string                      `json:"core_copy"`
	KeyMessage     string                      `json:"key_message"`
	EmotionalHook  string                      `json:"emotional_hook"`
	VisualConcept  string                      `json:"visual_concept"`
	VisualStyle    VisualStyle                 `json:"visual_style"`
	ColorPalette   []string                    `json:"color_palette"`
	PlatformCopy   map[Platform]CopyAdaptation `json:"platform_copy"`
}

// VisualPrompt is one concrete image-generation prompt for one aspect ratio.
type VisualPrompt struct {
	Prompt         string      `json:"prompt"`
	NegativePrompt string      `json:"negative_prompt"`
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	Style          VisualStyle `json:"style"`
	SafetyLevel    string      `json:"safety_level"`
	ConceptID      string      `json:"concept_id"`
	Variation      int         `json:"variation"`
}

// CreativeArtifact is one persisted image, addressed by a signed URL.
type CreativeArtifact struct {
	ID             string      `json:"id"`
	URL            string      `json:"url"`
	StorageKey     string      `json:"storage_key"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	HasTextOverlay bool        `json:"has_text_overlay"`
}

// CopyBundle is the final, compliance-safe text of a creative package. The
// headline and call to action here are byte-identical to the text drawn onto
// every artifact with HasTextOverlay set.
type CopyBundle struct {
	Headline     string `json:"headline"`
	PrimaryText  string `json:"primary_text"`
	Description  string `json:"description"`
	CallToAction string `json:"call_to_action"`
	Language     string `json:"language"`
}

// CallRecord captures cost and latency for one external model call.
type CallRecord struct {
	Agent    string        `json:"agent"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Latency  time.Duration `json:"latency"`
	CostUSD  float64       `json:"cost_usd"`
}

// PackageMetadata aggregates bookkeeping across the whole pipeline run.
type PackageMetadata struct {
	CacheHits      []string      `json:"cache_hits"` // stage names satisfied from cache
	Calls          []CallRecord  `json:"calls"`
	TotalCostUSD   float64       `json:"total_cost_usd"`
	GenerationTime time.Duration `json:"generation_time"`
}

// CreativePackage is the terminal output of the pipeline.
type CreativePackage struct {
	Copy      CopyBundle         `json:"copy"`
	Artifacts []CreativeArtifact `json:"artifacts"`
	Strategy  StrategySummary    `json:"strategy"`
	Metadata  PackageMetadata    `json:"metadata"`
}

// StrategySummary is the caller-facing digest of the strategy brief.
type StrategySummary struct {
	Angle         Angle       `json:"angle"`
	VisualStyle   VisualStyle `json:"visual_style"`
	KeyMessage    string      `json:"key_message"`
	VisualConcept string      `json:"visual_concept"`
}

// PipelineResult is the invocation contract of the pipeline: success with a
// package and accumulated warnings, or failure with accumulated errors.
type PipelineResult struct {
	Success  bool             `json:"success"`
	Package  *CreativePackage `json:"package,omitempty"`
	Errors   []AgentError     `json:"errors,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}
