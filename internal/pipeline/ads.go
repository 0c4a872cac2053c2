package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"marketgen/internal/domain"
	"marketgen/internal/providers/genai"
)

const (
	keyAudienceBrief = "audience_brief"
	keyAdDrafts      = "ad_drafts"
)

// draftAd carries the draft's position so rendered creatives can be merged
// back over the copy-only drafts.
type draftAd struct {
	Index int
	Ad    domain.AdCreative
}

func (c Collaborators) generateAds(job *domain.Job, p domain.GenerateAdsPayload) *Pipeline {
	steps := []Step{
		{
			Name:  "load_audience",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				brief, err := c.Text.GenerateText(ctx, genai.TextRequest{
					Prompt:    fmt.Sprintf("One-paragraph creative brief for advertising to the audience %q on %s.", p.AudienceName, platformOrDefault(p.Platform)),
					Context:   p.Persona,
					RequestID: job.ID,
				})
				if err != nil {
					return fmt.Errorf("audience brief: %w", err)
				}
				pc.Put(keyAudienceBrief, brief)
				return nil
			},
		},
		{
			Name: "write_copy",
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyAudienceBrief)
				brief, _ := v.(string)
				variants := make([]int, p.Variants)
				for i := range variants {
					variants[i] = i
				}
				ads, failures := ForEach(ctx, variants, c.fanOutLimit(), c.itemTimeout(),
					func(i int) string { return fmt.Sprintf("variant-%d", i+1) },
					func(ctx context.Context, i int) (domain.AdCreative, error) {
						copyText, err := c.Text.GenerateText(ctx, genai.TextRequest{
							Prompt:    fmt.Sprintf("Ad variant %d: first line is the headline, the rest is body copy.", i+1),
							Context:   brief,
							RequestID: job.ID,
						})
						if err != nil {
							return domain.AdCreative{}, err
						}
						headline, body := splitCopy(copyText)
						return domain.AdCreative{
							Headline: headline,
							Body:     body,
							Platform: platformOrDefault(p.Platform),
						}, nil
					})
				for _, f := range failures {
					pc.Warn("write_copy", f.Item, f.Err.Error())
				}
				pc.Put(keyAdDrafts, ads)
				if len(ads) == 0 {
					return fmt.Errorf("all %d copy variants failed", len(variants))
				}
				return nil
			},
		},
		{
			Name: "render_creatives",
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyAdDrafts)
				ads, _ := v.([]domain.AdCreative)
				drafts := make([]draftAd, 0, len(ads))
				for i, ad := range ads {
					drafts = append(drafts, draftAd{Index: i, Ad: ad})
				}
				rendered, failures := ForEach(ctx, drafts, c.fanOutLimit(), c.itemTimeout(),
					func(d draftAd) string { return d.Ad.Headline },
					func(ctx context.Context, d draftAd) (draftAd, error) {
						assets, err := c.Images.GenerateImages(ctx, genai.ImageRequest{
							Prompt:    d.Ad.Headline + "\n" + d.Ad.Body,
							Quantity:  1,
							RequestID: job.ID,
						})
						if err != nil || len(assets) == 0 {
							if err == nil {
								err = fmt.Errorf("generator returned no image")
							}
							return d, err
						}
						key := fmt.Sprintf("generated/ads/%s/%s%s", job.ID, slug(d.Ad.Headline), extensionFor(assets[0].Format))
						saved, werr := c.Store.Write(ctx, key, assets[0].Data)
						if werr != nil {
							return d, werr
						}
						d.Ad.Asset = &domain.AssetRef{
							StorageKey: saved,
							URL:        c.Store.URL(saved),
							Format:     assets[0].Format,
							Width:      assets[0].Width,
							Height:     assets[0].Height,
						}
						return d, nil
					})
				for _, f := range failures {
					pc.Warn("render_creatives", f.Item, f.Err.Error())
				}
				// Ads whose rendering failed stay copy-only.
				merged := append([]domain.AdCreative(nil), ads...)
				for _, d := range rendered {
					merged[d.Index] = d.Ad
				}
				pc.Put(keyAdDrafts, merged)
				return nil
			},
		},
		{
			Name:  "persist_ads",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyAdDrafts)
				ads, _ := v.([]domain.AdCreative)
				if len(ads) == 0 {
					return nil
				}
				payloads := make([]json.RawMessage, 0, len(ads))
				for _, ad := range ads {
					b, err := json.Marshal(ad)
					if err != nil {
						return fmt.Errorf("encode ad: %w", err)
					}
					payloads = append(payloads, b)
				}
				return c.Artifacts.SaveArtifacts(ctx, job.ID, job.ProjectID, "ad_creative", payloads)
			},
		},
	}

	return &Pipeline{
		Steps: steps,
		Result: func(pc *Context) ([]byte, error) {
			v, _ := pc.Get(keyAdDrafts)
			ads, _ := v.([]domain.AdCreative)
			if len(ads) == 0 {
				return nil, fmt.Errorf("%w: no ads generated", domain.ErrNoUsableOutput)
			}
			return json.Marshal(domain.AdBatchResult{
				Ads:      ads,
				Warnings: pc.Warnings(),
			})
		},
	}
}

func platformOrDefault(platform string) string {
	if platform == "" {
		return "meta"
	}
	return platform
}

func splitCopy(text string) (string, string) {
	trimmed := strings.TrimSpace(text)
	if idx := strings.IndexByte(trimmed, '\n'); idx > 0 {
		return strings.TrimSpace(trimmed[:idx]), strings.TrimSpace(trimmed[idx+1:])
	}
	return trimmed, ""
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "ad"
	}
	if len(out) > 40 {
		out = out[:40]
	}
	return out
}
