// Package assets implements the asset retrieval agent: historical top ads,
// pre-approved copy snippets, similar campaign references, and the merged
// forbidden-term blacklist. Pure retrieval, no reasoning model, no cache.
package assets

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/launchpro/creative-engine/internal/creative"
)

const agentName = "asset_retrieval"

const topAdLimit = 5

// Store is the read-only campaign-history surface the agent queries.
type Store interface {
	TopAds(ctx context.Context, vertical, country string, limit int) ([]creative.TopAd, error)
	ApprovedSnippets(ctx context.Context, vertical, language string) ([]creative.CopySnippet, error)
	SimilarCampaigns(ctx context.Context, vertical, country string, platform creative.Platform, limit int) ([]creative.SimilarCampaign, error)
}

// Agent performs the three independent retrievals.
type Agent struct {
	store  Store
	logger *zap.Logger
}

func New(store Store, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{store: store, logger: logger}
}

// Run retrieves assets for the input's market. The retrievals are
// independent of each other but all must succeed: without asset context the
// pipeline cannot proceed.
func (a *Agent) Run(ctx context.Context, input creative.PipelineInput) (creative.RetrievedAssets, creative.RunInfo, error) {
	var info creative.RunInfo

	topAds, err := a.store.TopAds(ctx, input.Vertical, input.Country, topAdLimit)
	if err != nil {
		return creative.RetrievedAssets{}, info, creative.NewAgentError(agentName, creative.ErrRetrieval, false,
			"top ads retrieval failed: %v", err)
	}

	snippets, err := a.store.ApprovedSnippets(ctx, input.Vertical, input.Language)
	if err != nil {
		return creative.RetrievedAssets{}, info, creative.NewAgentError(agentName, creative.ErrRetrieval, false,
			"approved snippets retrieval failed: %v", err)
	}
	if len(snippets) == 0 {
		snippets = builtinSnippets(input.Vertical, input.Language)
		info.Warnf("no approved snippets for %s/%s; built-in templates substituted", input.Vertical, input.Language)
		a.logger.Debug("using built-in snippet templates",
			zap.String("vertical", input.Vertical),
			zap.String("language", input.Language))
	}

	campaigns, err := a.store.SimilarCampaigns(ctx, input.Vertical, input.Country, input.Platform, 3)
	if err != nil {
		return creative.RetrievedAssets{}, info, creative.NewAgentError(agentName, creative.ErrRetrieval, false,
			"similar campaigns retrieval failed: %v", err)
	}

	return creative.RetrievedAssets{
		TopAds:           topAds,
		ApprovedCopy:     snippets,
		Blacklist:        MergedBlacklist(input.Platform, input.Vertical),
		SimilarCampaigns: campaigns,
	}, info, nil
}

// platformBlacklist holds terms forbidden by each ad network's policies.
var platformBlacklist = map[creative.Platform][]string{
	creative.PlatformMeta: {
		"guaranteed results",
		"miracle",
		"risk-free",
		"before and after",
		"you won't believe",
	},
	creative.PlatformTikTok: {
		"guaranteed",
		"get rich",
		"miracle cure",
		"100% effective",
		"click here",
	},
}

// verticalBlacklist holds terms forbidden for specific offer verticals.
var verticalBlacklist = map[string][]string{
	"finance": {
		"no credit check",
		"instant approval guaranteed",
		"debt free overnight",
		"free money",
	},
	"health": {
		"cure",
		"lose weight fast",
		"doctor approved",
		"no side effects",
	},
	"education": {
		"guaranteed job",
		"certified instantly",
	},
}

// MergedBlacklist merges the platform and vertical term lists, deduplicated
// and sorted for stable output.
func MergedBlacklist(platform creative.Platform, vertical string) []string {
	seen := make(map[string]struct{})
	for _, t := range platformBlacklist[platform] {
		seen[t] = struct{}{}
	}
	for _, t := range verticalBlacklist[vertical] {
		seen[t] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// snippetTemplates are the built-in fallbacks when the system of record has
// no approved copy for a vertical/language. Text here is compliance-reviewed
// like any other approved snippet.
var snippetTemplates = map[string]map[creative.SnippetType]string{
	"es": {
		creative.SnippetHeadline:    "Descubre una mejor opción hoy",
		creative.SnippetPrimaryText: "Miles de personas ya dieron el paso. Conoce los beneficios pensados para ti.",
		creative.SnippetDescription: "Proceso simple y transparente.",
		creative.SnippetCTA:         "Más información",
	},
	"pt": {
		creative.SnippetHeadline:    "Descubra uma opção melhor hoje",
		creative.SnippetPrimaryText: "Milhares de pessoas já deram o passo. Conheça os benefícios pensados para você.",
		creative.SnippetDescription: "Processo simples e transparente.",
		creative.SnippetCTA:         "Saiba mais",
	},
	"en": {
		creative.SnippetHeadline:    "Discover a better option today",
		creative.SnippetPrimaryText: "Thousands have already made the switch. See the benefits designed for you.",
		creative.SnippetDescription: "A simple, transparent process.",
		creative.SnippetCTA:         "Learn more",
	},
}

// verticalTemplates overlay the generic set for the verticals the blacklists
// already single out. Missing fields fall back to the generic text.
var verticalTemplates = map[string]map[string]map[creative.SnippetType]string{
	"finance": {
		"es": {
			creative.SnippetHeadline:    "Una solución financiera a tu medida",
			creative.SnippetPrimaryText: "Compara opciones y elige la que se ajusta a tu presupuesto.",
			creative.SnippetDescription: "Requisitos claros desde el inicio.",
		},
		"pt": {
			creative.SnippetHeadline:    "Uma solução financeira sob medida",
			creative.SnippetPrimaryText: "Compare opções e escolha a que cabe no seu orçamento.",
			creative.SnippetDescription: "Requisitos claros desde o início.",
		},
		"en": {
			creative.SnippetHeadline:    "A financial solution that fits you",
			creative.SnippetPrimaryText: "Compare options and pick the one that fits your budget.",
			creative.SnippetDescription: "Clear requirements from the start.",
		},
	},
	"health": {
		"es": {
			creative.SnippetHeadline:    "Cuida tu bienestar todos los días",
			creative.SnippetPrimaryText: "Pequeños hábitos hacen una gran diferencia. Empieza hoy a tu ritmo.",
			creative.SnippetDescription: "Consulta siempre a un profesional.",
		},
		"pt": {
			creative.SnippetHeadline:    "Cuide do seu bem-estar todos os dias",
			creative.SnippetPrimaryText: "Pequenos hábitos fazem uma grande diferença. Comece hoje no seu ritmo.",
			creative.SnippetDescription: "Consulte sempre um profissional.",
		},
		"en": {
			creative.SnippetHeadline:    "Take care of your wellbeing every day",
			creative.SnippetPrimaryText: "Small habits make a big difference. Start today at your own pace.",
			creative.SnippetDescription: "Always consult a professional.",
		},
	},
	"education": {
		"es": {
			creative.SnippetHeadline:    "Aprende nuevas habilidades a tu ritmo",
			creative.SnippetPrimaryText: "Programas flexibles que se adaptan a tu horario.",
			creative.SnippetDescription: "Certificación al completar el curso.",
		},
		"pt": {
			creative.SnippetHeadline:    "Aprenda novas habilidades no seu ritmo",
			creative.SnippetPrimaryText: "Programas flexíveis que se adaptam à sua rotina.",
			creative.SnippetDescription: "Certificação ao concluir o curso.",
		},
		"en": {
			creative.SnippetHeadline:    "Learn new skills at your own pace",
			creative.SnippetPrimaryText: "Flexible programs that fit your schedule.",
			creative.SnippetDescription: "Certification on course completion.",
		},
	},
}

func builtinSnippets(vertical, language string) []creative.CopySnippet {
	lang := language
	if _, ok := snippetTemplates[lang]; !ok {
		lang = "en"
	}
	base := snippetTemplates[lang]
	overlay := verticalTemplates[vertical][lang]

	types := []creative.SnippetType{
		creative.SnippetHeadline,
		creative.SnippetPrimaryText,
		creative.SnippetDescription,
		creative.SnippetCTA,
	}
	out := make([]creative.CopySnippet, 0, len(types))
	for _, st := range types {
		text := base[st]
		if t, ok := overlay[st]; ok {
			text = t
		}
		out = append(out, creative.CopySnippet{
			Type:     st,
			Text:     text,
			Language: language,
			Vertical: vertical,
		})
	}
	return out
}
