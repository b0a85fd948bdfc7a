package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/launchpro/creative-engine/internal/creative"
)

// ErrOfferNotFound is returned when an offer id has no row.
var ErrOfferNotFound = errors.New("offer not found")

// Offer is the advertised product a pipeline run generates creatives for.
type Offer struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Vertical    string `db:"vertical"`
	Description string `db:"description"`
}

// Market-affinity scores carried on TopAd.Similarity.
const (
	exactCountrySimilarity = 1.0
	backfillSimilarity     = 0.75
)

type topAdRow struct {
	ID       string  `db:"id"`
	Headline string  `db:"headline"`
	Country  string  `db:"country"`
	Vertical string  `db:"vertical"`
	CTR      float64 `db:"ctr"`
}

type snippetRow struct {
	Type     string `db:"snippet_type"`
	Text     string `db:"text"`
	Language string `db:"language"`
	Vertical string `db:"vertical"`
}

type similarCampaignRow struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Country  string `db:"country"`
	Platform string `db:"platform"`
}

// GetOffer looks up an offer by id.
func (c *Client) GetOffer(ctx context.Context, id string) (*Offer, error) {
	var offer Offer
	err := c.breaker.Execute(ctx, func() error {
		return c.db.GetContext(ctx, &offer,
			`SELECT id, name, vertical, description FROM offers WHERE id = $1`, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get offer %s: %w", id, err)
	}
	return &offer, nil
}

// TopAds returns up to limit top-performing historical ads for a vertical.
// Exact-country matches come first; if fewer than limit exist, the remainder
// is backfilled with the best performers from other countries. Results are
// deduplicated by ad id.
func (c *Client) TopAds(ctx context.Context, vertical, country string, limit int) ([]creative.TopAd, error) {
	if limit <= 0 {
		limit = 5
	}

	var local, global []topAdRow
	err := c.breaker.Execute(ctx, func() error {
		if err := c.db.SelectContext(ctx, &local,
			`SELECT id, headline, country, vertical, ctr
			 FROM ads
			 WHERE vertical = $1 AND country = $2 AND status = 'active'
			 ORDER BY ctr DESC
			 LIMIT $3`, vertical, country, limit); err != nil {
			return err
		}
		if len(local) >= limit {
			return nil
		}
		return c.db.SelectContext(ctx, &global,
			`SELECT id, headline, country, vertical, ctr
			 FROM ads
			 WHERE vertical = $1 AND country != $2 AND status = 'active'
			 ORDER BY ctr DESC
			 LIMIT $3`, vertical, country, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("top ads for %s/%s: %w", vertical, country, err)
	}

	seen := make(map[string]struct{}, limit)
	out := make([]creative.TopAd, 0, limit)
	for gi, rows := range [][]topAdRow{local, global} {
		// Market affinity: exact-country ads are full matches, backfilled
		// cross-country ads are discounted.
		similarity := exactCountrySimilarity
		if gi > 0 {
			similarity = backfillSimilarity
		}
		for _, r := range rows {
			if len(out) >= limit {
				break
			}
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, creative.TopAd{
				ID:         r.ID,
				Headline:   r.Headline,
				Country:    r.Country,
				Vertical:   r.Vertical,
				CTR:        r.CTR,
				Similarity: similarity,
			})
		}
	}
	return out, nil
}

// ApprovedSnippets returns the compliance-reviewed copy snippets for a
// vertical and language. An empty result is not an error; the retrieval
// agent substitutes built-in templates.
func (c *Client) ApprovedSnippets(ctx context.Context, vertical, language string) ([]creative.CopySnippet, error) {
	var rows []snippetRow
	err := c.breaker.Execute(ctx, func() error {
		return c.db.SelectContext(ctx, &rows,
			`SELECT snippet_type, text, language, vertical
			 FROM approved_snippets
			 WHERE vertical = $1 AND language = $2 AND approved = true
			 ORDER BY snippet_type, created_at DESC`, vertical, language)
	})
	if err != nil {
		return nil, fmt.Errorf("approved snippets for %s/%s: %w", vertical, language, err)
	}

	out := make([]creative.CopySnippet, 0, len(rows))
	for _, r := range rows {
		out = append(out, creative.CopySnippet{
			Type:     creative.SnippetType(r.Type),
			Text:     r.Text,
			Language: r.Language,
			Vertical: r.Vertical,
		})
	}
	return out, nil
}

// SimilarCampaigns returns references to past campaigns with comparable
// targeting.
func (c *Client) SimilarCampaigns(ctx context.Context, vertical, country string, platform creative.Platform, limit int) ([]creative.SimilarCampaign, error) {
	if limit <= 0 {
		limit = 3
	}
	var rows []similarCampaignRow
	err := c.breaker.Execute(ctx, func() error {
		return c.db.SelectContext(ctx, &rows,
			`SELECT id, name, country, platform
			 FROM campaigns
			 WHERE vertical = $1 AND country = $2 AND platform = $3
			 ORDER BY launched_at DESC
			 LIMIT $4`, vertical, country, string(platform), limit)
	})
	if err != nil {
		return nil, fmt.Errorf("similar campaigns for %s/%s: %w", vertical, country, err)
	}

	out := make([]creative.SimilarCampaign, 0, len(rows))
	for _, r := range rows {
		out = append(out, creative.SimilarCampaign{
			ID:       r.ID,
			Name:     r.Name,
			Country:  r.Country,
			Platform: r.Platform,
		})
	}
	return out, nil
}
