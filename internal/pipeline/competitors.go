package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"marketgen/internal/domain"
	"marketgen/internal/providers/genai"
	"marketgen/internal/providers/scrape"
)

// Context keys for the competitor analysis pipeline.
const (
	keyCandidates = "candidates"
	keyPages      = "pages"
	keyInsights   = "insights"
)

// analyzeCompetitors is the representative discovery/analysis pipeline:
// finding zero candidates is fatal, per-candidate scrape/analysis failures
// are not, and an unsaved analysis is not a usable terminal state.
func (c Collaborators) analyzeCompetitors(job *domain.Job, p domain.AnalyzeCompetitorsPayload) *Pipeline {
	steps := []Step{
		{
			Name:  "discover_candidates",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				candidates := p.Candidates
				if len(candidates) == 0 {
					found, err := c.Discoverer.Discover(ctx, p.ProductName, p.Market, p.MaxResults)
					if err != nil {
						return fmt.Errorf("discovery: %w", err)
					}
					candidates = found
				}
				if len(candidates) > p.MaxResults && p.MaxResults > 0 {
					candidates = candidates[:p.MaxResults]
				}
				if len(candidates) == 0 {
					return fmt.Errorf("no candidates discovered for %q", p.ProductName)
				}
				pc.Put(keyCandidates, candidates)
				return nil
			},
		},
		{
			Name: "scrape_candidates",
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyCandidates)
				candidates, _ := v.([]string)
				pages, failures := ForEach(ctx, candidates, c.fanOutLimit(), c.itemTimeout(),
					func(u string) string { return u },
					func(ctx context.Context, u string) (*scrape.PageContent, error) {
						return c.Scraper.Scrape(ctx, u)
					})
				for _, f := range failures {
					pc.Warn("scrape_candidates", f.Item, f.Err.Error())
				}
				pc.Put(keyPages, pages)
				if len(pages) == 0 {
					return fmt.Errorf("all %d candidates failed to scrape", len(candidates))
				}
				return nil
			},
		},
		{
			Name: "analyze_each",
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyPages)
				pages, _ := v.([]*scrape.PageContent)
				insights, failures := ForEach(ctx, pages, c.fanOutLimit(), c.itemTimeout(),
					func(pg *scrape.PageContent) string { return pg.URL },
					func(ctx context.Context, pg *scrape.PageContent) (domain.CompetitorInsight, error) {
						summary, err := c.Text.GenerateText(ctx, genai.TextRequest{
							Prompt:    fmt.Sprintf("Summarize the positioning of this competitor of %q.", p.ProductName),
							Context:   pg.Text,
							RequestID: job.ID,
						})
						if err != nil {
							return domain.CompetitorInsight{}, err
						}
						return domain.CompetitorInsight{
							URL:     pg.URL,
							Name:    pg.Title,
							Summary: summary,
						}, nil
					})
				for _, f := range failures {
					pc.Warn("analyze_each", f.Item, f.Err.Error())
				}
				pc.Put(keyInsights, insights)
				if len(insights) == 0 {
					return fmt.Errorf("all %d scraped candidates failed analysis", len(pages))
				}
				return nil
			},
		},
		{
			Name: "fetch_ad_intelligence",
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyInsights)
				insights, _ := v.([]domain.CompetitorInsight)
				var lastErr error
				for i := range insights {
					intel, err := c.AdIntel.Lookup(ctx, insights[i].URL)
					if err != nil {
						lastErr = err
						continue
					}
					insights[i].AdIntel = intel
				}
				pc.Put(keyInsights, insights)
				if lastErr != nil {
					return fmt.Errorf("ad intelligence incomplete: %w", lastErr)
				}
				return nil
			},
		},
		{
			Name:  "persist_results",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyInsights)
				insights, _ := v.([]domain.CompetitorInsight)
				if len(insights) == 0 {
					return nil
				}
				payloads := make([]json.RawMessage, 0, len(insights))
				for _, insight := range insights {
					b, err := json.Marshal(insight)
					if err != nil {
						return fmt.Errorf("encode insight: %w", err)
					}
					payloads = append(payloads, b)
				}
				return c.Artifacts.SaveArtifacts(ctx, job.ID, job.ProjectID, "competitor_insight", payloads)
			},
		},
	}

	return &Pipeline{
		Steps: steps,
		Result: func(pc *Context) ([]byte, error) {
			v, _ := pc.Get(keyInsights)
			insights, _ := v.([]domain.CompetitorInsight)
			if len(insights) == 0 {
				return nil, fmt.Errorf("%w: no competitors analyzed", domain.ErrNoUsableOutput)
			}
			return json.Marshal(domain.CompetitorAnalysisResult{
				AnalyzedCount: len(insights),
				Competitors:   insights,
				Warnings:      pc.Warnings(),
			})
		},
	}
}
