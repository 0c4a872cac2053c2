package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"marketgen/internal/domain"
	"marketgen/internal/providers/genai"
)

const (
	keyScript     = "script"
	keyVideo      = "video"
	keyVideoAsset = "video_asset"
)

// generateUGCVideo renders a short creator-style product video. Every step
// is fatal: a half-rendered or unsaved video is not a usable outcome.
func (c Collaborators) generateUGCVideo(job *domain.Job, p domain.GenerateUGCVideoPayload) *Pipeline {
	steps := []Step{
		{
			Name:  "write_script",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				script := p.Script
				if script == "" {
					generated, err := c.Text.GenerateText(ctx, genai.TextRequest{
						Prompt:    fmt.Sprintf("A %d-second casual creator script promoting %q.", p.DurationSeconds, p.ProductName),
						RequestID: job.ID,
					})
					if err != nil {
						return fmt.Errorf("script generation: %w", err)
					}
					script = generated
				}
				pc.Put(keyScript, script)
				return nil
			},
		},
		{
			Name:  "render_video",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyScript)
				script, _ := v.(string)
				video, err := c.Video.GenerateVideo(ctx, genai.VideoRequest{
					Prompt:          script,
					DurationSeconds: p.DurationSeconds,
					RequestID:       job.ID,
				})
				if err != nil {
					return fmt.Errorf("video render: %w", err)
				}
				pc.Put(keyVideo, video)
				return nil
			},
		},
		{
			Name:  "upload_video",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyVideo)
				video, _ := v.(*genai.VideoAsset)
				key := fmt.Sprintf("generated/videos/%s/video%s", job.ID, extensionFor(video.Format))
				saved, err := c.Store.Write(ctx, key, video.Data)
				if err != nil {
					return fmt.Errorf("upload video: %w", err)
				}
				pc.Put(keyVideoAsset, domain.AssetRef{
					StorageKey: saved,
					URL:        c.Store.URL(saved),
					Format:     video.Format,
				})
				return nil
			},
		},
		{
			Name:  "persist_video",
			Fatal: true,
			Run: func(ctx context.Context, pc *Context) error {
				v, _ := pc.Get(keyVideoAsset)
				asset, _ := v.(domain.AssetRef)
				b, err := json.Marshal(asset)
				if err != nil {
					return fmt.Errorf("encode video asset: %w", err)
				}
				return c.Artifacts.SaveArtifacts(ctx, job.ID, job.ProjectID, "ugc_video", []json.RawMessage{b})
			},
		},
	}

	return &Pipeline{
		Steps: steps,
		Result: func(pc *Context) ([]byte, error) {
			av, ok := pc.Get(keyVideoAsset)
			if !ok {
				return nil, fmt.Errorf("%w: no video produced", domain.ErrNoUsableOutput)
			}
			asset, _ := av.(domain.AssetRef)
			sv, _ := pc.Get(keyScript)
			script, _ := sv.(string)
			return json.Marshal(domain.UGCVideoResult{
				Asset:           asset,
				Script:          script,
				DurationSeconds: p.DurationSeconds,
				Warnings:        pc.Warnings(),
			})
		},
	}
}
