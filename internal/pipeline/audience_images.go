package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"marketgen/internal/domain"
	"marketgen/internal/providers/genai"
)

const (
	keyImagePrompts = "image_prompts"
	keyRawImages    = "raw_images"
	keyImageAssets  = "image_assets"
)

type promptVariant struct {
	Index  int
	Prompt string
}

type generatedImage struct {
	Index int
	Asset genai.ImageAsset
}

func (c Collaborators) generateAudienceImages(job *domain.Job, p domain.GenerateAudienceImagesPayload) *Pipeline {
	steps := []Step{
		{
			Name:  "build_prompts",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				variants := make([]promptVariant, 0, p.Quantity)
				for i := 0; i < p.Quantity; i++ {
					variants = append(variants, promptVariant{
						Index:  i,
						Prompt: fmt.Sprintf("%s, variation %d for audience %q", p.Prompt, i+1, p.AudienceName),
					})
				}
				pc.Put(keyImagePrompts, variants)
				return nil
			},
		},
		{
			Name: "generate_images",
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyImagePrompts)
				variants, _ := v.([]promptVariant)
				images, failures := ForEach(ctx, variants, c.fanOutLimit(), c.itemTimeout(),
					func(pv promptVariant) string { return fmt.Sprintf("variant-%d", pv.Index+1) },
					func(ctx context.Context, pv promptVariant) (generatedImage, error) {
						assets, err := c.Images.GenerateImages(ctx, genai.ImageRequest{
							Prompt:      pv.Prompt,
							Quantity:    1,
							AspectRatio: p.AspectRatio,
							RequestID:   job.ID,
						})
						if err != nil {
							return generatedImage{}, err
						}
						if len(assets) == 0 {
							return generatedImage{}, fmt.Errorf("generator returned no image")
						}
						return generatedImage{Index: pv.Index, Asset: assets[0]}, nil
					})
				for _, f := range failures {
					pc.Warn("generate_images", f.Item, f.Err.Error())
				}
				pc.Put(keyRawImages, images)
				if len(images) == 0 {
					return fmt.Errorf("all %d image generations failed", len(variants))
				}
				return nil
			},
		},
		{
			Name: "isolate_product",
			Run: func(ctx context.Context, pc *Context) error {
				if p.ProductImageURL == "" {
					// Nothing to isolate without a product reference.
					return nil
				}
				v, _ := pc.Get(keyRawImages)
				images, _ := v.([]generatedImage)
				isolated, failures := ForEach(ctx, images, c.fanOutLimit(), c.itemTimeout(),
					func(gi generatedImage) string { return fmt.Sprintf("variant-%d", gi.Index+1) },
					func(ctx context.Context, gi generatedImage) (generatedImage, error) {
						cutout, err := c.Vision.Isolate(ctx, gi.Asset.Data)
						if err != nil {
							return gi, err
						}
						gi.Asset.Data = cutout.Data
						gi.Asset.Format = cutout.Format
						return gi, nil
					})
				for _, f := range failures {
					pc.Warn("isolate_product", f.Item, f.Err.Error())
				}
				// Failed isolations keep their original image.
				byIndex := make(map[int]generatedImage, len(isolated))
				for _, gi := range isolated {
					byIndex[gi.Index] = gi
				}
				merged := make([]generatedImage, 0, len(images))
				for _, gi := range images {
					if iso, ok := byIndex[gi.Index]; ok {
						merged = append(merged, iso)
					} else {
						merged = append(merged, gi)
					}
				}
				pc.Put(keyRawImages, merged)
				return nil
			},
		},
		{
			Name: "upload_assets",
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyRawImages)
				images, _ := v.([]generatedImage)
				assets, failures := ForEach(ctx, images, c.fanOutLimit(), c.itemTimeout(),
					func(gi generatedImage) string { return fmt.Sprintf("variant-%d", gi.Index+1) },
					func(ctx context.Context, gi generatedImage) (domain.AssetRef, error) {
						key := fmt.Sprintf("generated/images/%s/image-%02d%s", job.ID, gi.Index+1, extensionFor(gi.Asset.Format))
						saved, err := c.Store.Write(ctx, key, gi.Asset.Data)
						if err != nil {
							return domain.AssetRef{}, err
						}
						return domain.AssetRef{
							StorageKey: saved,
							URL:        c.Store.URL(saved),
							Format:     gi.Asset.Format,
							Width:      gi.Asset.Width,
							Height:     gi.Asset.Height,
						}, nil
					})
				for _, f := range failures {
					pc.Warn("upload_assets", f.Item, f.Err.Error())
				}
				pc.Put(keyImageAssets, assets)
				if len(assets) == 0 {
					return fmt.Errorf("all %d uploads failed", len(images))
				}
				return nil
			},
		},
		{
			Name:  "persist_assets",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyImageAssets)
				assets, _ := v.([]domain.AssetRef)
				if len(assets) == 0 {
					return nil
				}
				payloads := make([]json.RawMessage, 0, len(assets))
				for _, a := range assets {
					b, err := json.Marshal(a)
					if err != nil {
						return fmt.Errorf("encode asset: %w", err)
					}
					payloads = append(payloads, b)
				}
				return c.Artifacts.SaveArtifacts(ctx, job.ID, job.ProjectID, "audience_image", payloads)
			},
		},
	}

	return &Pipeline{
		Steps: steps,
		Result: func(pc *Context) ([]byte, error) {
			v, _ := pc.Get(keyImageAssets)
			assets, _ := v.([]domain.AssetRef)
			if len(assets) == 0 {
				return nil, fmt.Errorf("%w: no images generated", domain.ErrNoUsableOutput)
			}
			return json.Marshal(domain.ImageBatchResult{
				Assets:   assets,
				Warnings: pc.Warnings(),
			})
		},
	}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}
